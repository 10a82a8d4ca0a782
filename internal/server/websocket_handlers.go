package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/scanroi/internal/frame"
	"github.com/MeKo-Tech/scanroi/internal/scanner"
	"github.com/MeKo-Tech/scanroi/internal/symbology"
	"github.com/MeKo-Tech/scanroi/internal/utils"
	"github.com/gorilla/websocket"
)

// WebSocket upgrader with reasonable defaults. Frames are large, so the read
// buffer is sized for a VGA luma plane.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WebSocketRequest is a text message from the client.
//
// A "configure" message replaces the parts of the session it names. A
// "frame" message carries an encoded image; raw Y800 planes of the session's
// preview size are sent as binary messages instead.
type WebSocketRequest struct {
	Type        string    `json:"type"`
	Symbologies []string  `json:"symbologies,omitempty"`
	Cache       *bool     `json:"cache,omitempty"`
	Rect        *Rect     `json:"rect,omitempty"`
	ClearRect   bool      `json:"clear_rect,omitempty"`
	Geometry    *Geometry `json:"geometry,omitempty"`
	Image       []byte    `json:"image,omitempty"`
	Upright     bool      `json:"upright,omitempty"`
}

// WebSocketResponse is sent for every request and frame.
type WebSocketResponse struct {
	Type      string             `json:"type"` // "configured", "scan_result", "error"
	Frame     int                `json:"frame,omitempty"`
	Session   *SessionInfo       `json:"session,omitempty"`
	Scan      *ScanResponse      `json:"scan,omitempty"`
	RateLimit *RateLimitResponse `json:"rate_limit,omitempty"`
	Error     string             `json:"error,omitempty"`
	ErrorType string             `json:"error_type,omitempty"`
}

// SessionInfo describes a websocket session's current configuration.
type SessionInfo struct {
	Symbologies   []string `json:"symbologies"`
	Cache         bool     `json:"cache"`
	Rect          *Rect    `json:"rect,omitempty"`
	Rotation      int      `json:"rotation"`
	PreviewWidth  int      `json:"preview_width"`
	PreviewHeight int      `json:"preview_height"`
}

// wsSession is the scanner state of one connection. Messages are handled in
// arrival order on the connection's read loop, so no locking is needed.
type wsSession struct {
	client   string
	scanner  *scanner.Scanner
	geometry scanner.Geometry
	view     *scanner.StaticView
	display  *scanner.StaticDisplay
	frames   int
}

// newWSSession builds a session on the server defaults.
func (s *Server) newWSSession(client string) (*wsSession, error) {
	engine, err := s.newEngine(s.engineName)
	if err != nil {
		return nil, err
	}
	g := s.geometry
	sess := &wsSession{client: client, geometry: g, view: g.NewView(), display: g.NewDisplay()}
	sess.scanner, err = scanner.New(engine, scanner.StrongView(sess.view), scanner.StrongDisplay(sess.display))
	if err != nil {
		return nil, err
	}
	if err := sess.scanner.SetSymbology(s.symbologies); err != nil {
		return nil, err
	}
	sess.scanner.EnableCache(s.cacheEnabled)
	return sess, nil
}

// setGeometry updates the device in place; the scanner keeps referring to
// the same view and display.
func (ws *wsSession) setGeometry(g scanner.Geometry) {
	ws.geometry = g
	*ws.view = *g.NewView()
	*ws.display = *g.NewDisplay()
}

func (ws *wsSession) info() *SessionInfo {
	cfg := ws.scanner.Session().Configuration()
	info := &SessionInfo{
		Symbologies:   symbology.Names(cfg.Symbologies),
		Cache:         cfg.CacheEnabled,
		Rotation:      int(ws.geometry.Rotation()),
		PreviewWidth:  ws.geometry.PreviewWidth,
		PreviewHeight: ws.geometry.PreviewHeight,
	}
	if r, ok := ws.scanner.DecodeRect(); ok {
		rect := RectOf(r)
		info.Rect = &rect
	}
	return info
}

// scanWebSocketHandler handles WebSocket connections for live frame scanning.
func (s *Server) scanWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	sess, err := s.newWSSession(getClientIP(r))
	if err != nil {
		s.sendWebSocketError(conn, "session_error", fmt.Sprintf("Failed to create scanner: %v", err))
		return
	}
	slog.Info("WebSocket scan session started", "remote_addr", r.RemoteAddr)

	s.handleWebSocketConnection(conn, sess)
}

// handleWebSocketConnection processes messages from a WebSocket connection.
func (s *Server) handleWebSocketConnection(conn *websocket.Conn, sess *wsSession) {
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		websocketMessagesTotal.WithLabelValues("received").Inc()

		switch messageType {
		case websocket.TextMessage:
			s.handleWebSocketMessage(conn, sess, data)
		case websocket.BinaryMessage:
			s.processRawFrame(conn, sess, data)
		}
	}
	slog.Info("WebSocket scan session closed", "frames", sess.frames)
}

// handleWebSocketMessage processes a text message.
func (s *Server) handleWebSocketMessage(conn WebSocketConnWriter, sess *wsSession, data []byte) {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	switch req.Type {
	case "configure":
		s.configureSession(conn, sess, req)
	case "frame":
		s.processImageFrame(conn, sess, req)
	default:
		s.sendWebSocketError(conn, "invalid_request", "Unsupported request type: "+req.Type)
	}
}

// configureSession applies a configure request. Nothing is changed when any
// part of it is invalid.
func (s *Server) configureSession(conn WebSocketConnWriter, sess *wsSession, req WebSocketRequest) {
	g, err := req.Geometry.apply(sess.geometry)
	if err != nil {
		s.sendWebSocketError(conn, "invalid_request", fmt.Sprintf("Invalid geometry: %v", err))
		return
	}
	var list []symbology.Symbology
	if req.Symbologies != nil {
		if list, err = symbology.ParseList(req.Symbologies); err != nil {
			s.sendWebSocketError(conn, "invalid_request", err.Error())
			return
		}
		if err := sess.scanner.SetSymbology(list); err != nil {
			s.sendWebSocketError(conn, "session_error", err.Error())
			return
		}
	}

	sess.setGeometry(g)
	if req.Cache != nil {
		sess.scanner.EnableCache(*req.Cache)
	}
	switch {
	case req.ClearRect:
		sess.scanner.ClearDecodeRect()
	case req.Rect != nil:
		sess.scanner.SetDecodeRect(req.Rect.Image())
	}

	slog.Debug("WebSocket session configured", "client", sess.client, "symbologies", len(list))
	s.sendWebSocketResponse(conn, WebSocketResponse{Type: "configured", Session: sess.info()})
}

// processRawFrame decodes a Y800 plane of the session's preview size.
func (s *Server) processRawFrame(conn WebSocketConnWriter, sess *wsSession, data []byte) {
	sess.frames++
	if !s.allowFrame(conn, sess, int64(len(data))) {
		return
	}
	s.scanFrame(conn, sess, data, sess.geometry.Camera())
}

// processImageFrame decodes an encoded image sent in a frame message. The
// image size overrides the preview size for this frame only.
func (s *Server) processImageFrame(conn WebSocketConnWriter, sess *wsSession, req WebSocketRequest) {
	sess.frames++
	if len(req.Image) == 0 {
		s.sendWebSocketError(conn, "invalid_request", "No image data provided")
		return
	}
	if !s.allowFrame(conn, sess, int64(len(req.Image))) {
		return
	}

	img, _, err := utils.DecodeImage(bytes.NewReader(req.Image))
	if err != nil {
		s.sendWebSocketError(conn, "processing_error", fmt.Sprintf("Failed to decode image: %v", err))
		return
	}
	if req.Upright {
		if img, err = utils.SensorImage(img, sess.geometry.Rotation()); err != nil {
			s.sendWebSocketError(conn, "processing_error", err.Error())
			return
		}
	}
	f, err := frame.FromImage(img)
	if err != nil {
		s.sendWebSocketError(conn, "processing_error", err.Error())
		return
	}
	defer f.Release()

	g := sess.geometry
	g.PreviewWidth, g.PreviewHeight = f.Width, f.Height
	s.scanFrame(conn, sess, f.Data, g.Camera())
}

func (s *Server) scanFrame(conn WebSocketConnWriter, sess *wsSession, data []byte, cam scanner.StaticCamera) {
	resp, err := s.scan(sess.scanner, data, cam, "websocket")
	if err != nil {
		s.sendWebSocketResponse(conn, WebSocketResponse{
			Type:      "error",
			Frame:     sess.frames,
			Error:     err.Error(),
			ErrorType: "processing_error",
		})
		return
	}
	s.sendWebSocketResponse(conn, WebSocketResponse{Type: "scan_result", Frame: sess.frames, Scan: &resp})
}

// allowFrame charges a frame against the client's limits.
func (s *Server) allowFrame(conn WebSocketConnWriter, sess *wsSession, size int64) bool {
	if s.rateLimiter == nil {
		return true
	}
	err := s.rateLimiter.Allow(sess.client, size)
	if err == nil {
		return true
	}
	recordRateLimitHit(err)
	resp := WebSocketResponse{Type: "error", Frame: sess.frames, Error: err.Error(), ErrorType: "rate_limited"}
	if body, ok := rateLimitResponse(err); ok {
		resp.RateLimit = &body
	}
	s.sendWebSocketResponse(conn, resp)
	return false
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "error",
		Error:     message,
		ErrorType: errorType,
	})
}
