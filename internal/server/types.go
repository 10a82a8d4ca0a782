package server

import (
	"errors"
	"fmt"
	"image"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/scanroi/internal/barcode"
	"github.com/MeKo-Tech/scanroi/internal/orientation"
	"github.com/MeKo-Tech/scanroi/internal/scanner"
	"github.com/MeKo-Tech/scanroi/internal/symbology"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// engineFactory creates a decoding engine by name.
type engineFactory func(name string) (barcode.Engine, error)

// Server holds the HTTP server state and dependencies.
type Server struct {
	newEngine    engineFactory
	engineName   string
	symbologies  []symbology.Symbology
	cacheEnabled bool
	geometry     scanner.Geometry
	corsOrigin   string
	maxUploadMB  int64
	timeoutSec   int
	rateLimiter  *RateLimiter
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int

	// Engine names the decoding backend; empty selects the default.
	Engine string
	// Symbologies enabled for every scan unless a request narrows them.
	Symbologies []symbology.Symbology
	// CacheEnabled turns on symbol de-duplication for websocket sessions.
	CacheEnabled bool
	// Geometry is the device assumed when a request does not describe one.
	Geometry scanner.Geometry
	// RateLimit enables per-client limits when non-nil.
	RateLimit *Limits
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Engine  string `json:"engine,omitempty"`
	Time    string `json:"time"`
}

type SymbologyInfo struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Dimensions int    `json:"dimensions"`
	Enabled    bool   `json:"enabled"`
}

type SymbologiesResponse struct {
	Symbologies []SymbologyInfo `json:"symbologies"`
	Count       int             `json:"count"`
}

// Rect is the wire form of a rectangle.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// RectOf converts an image rectangle to its wire form.
func RectOf(r image.Rectangle) Rect {
	return Rect{Left: r.Min.X, Top: r.Min.Y, Right: r.Max.X, Bottom: r.Max.Y}
}

// Image converts r back to an image rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rectangle{Min: image.Pt(r.Left, r.Top), Max: image.Pt(r.Right, r.Bottom)}
}

// Geometry overrides parts of the server's default device. Zero fields keep
// the default.
type Geometry struct {
	PreviewWidth    int    `json:"preview_width,omitempty"`
	PreviewHeight   int    `json:"preview_height,omitempty"`
	Facing          string `json:"facing,omitempty"`
	MountAngle      *int   `json:"mount_angle,omitempty"`
	DisplayRotation *int   `json:"display_rotation,omitempty"`
	Display         string `json:"display,omitempty"`
	ViewWidth       int    `json:"view_width,omitempty"`
	ViewHeight      int    `json:"view_height,omitempty"`
}

// apply returns base with the overrides in g applied.
func (g *Geometry) apply(base scanner.Geometry) (scanner.Geometry, error) {
	if g == nil {
		return base, base.Validate()
	}
	out := base
	if g.PreviewWidth != 0 {
		out.PreviewWidth = g.PreviewWidth
	}
	if g.PreviewHeight != 0 {
		out.PreviewHeight = g.PreviewHeight
	}
	if g.Facing != "" {
		f, err := orientation.ParseFacing(g.Facing)
		if err != nil {
			return base, err
		}
		out.Facing = f
	}
	if g.MountAngle != nil {
		out.MountAngle = *g.MountAngle
	}
	if g.DisplayRotation != nil {
		out.DisplaySteps = *g.DisplayRotation
	}
	if g.ViewWidth != 0 {
		out.ViewWidth = g.ViewWidth
	}
	if g.ViewHeight != 0 {
		out.ViewHeight = g.ViewHeight
	}
	switch strings.ToLower(strings.TrimSpace(g.Display)) {
	case "":
	case "auto":
		out.Display = orientation.ClassifyDisplay(out.ViewWidth, out.ViewHeight)
	default:
		d, err := orientation.ParseDisplayOrientation(g.Display)
		if err != nil {
			return base, err
		}
		out.Display = d
	}
	return out, out.Validate()
}

// RegionRequest asks for the sensor crop of a scan rectangle.
type RegionRequest struct {
	Rect     Rect      `json:"rect"`
	Geometry *Geometry `json:"geometry,omitempty"`
}

type RegionResponse struct {
	Success       bool   `json:"success"`
	Crop          *Rect  `json:"crop,omitempty"`
	Rotation      int    `json:"rotation"`
	PreviewWidth  int    `json:"preview_width,omitempty"`
	PreviewHeight int    `json:"preview_height,omitempty"`
	Error         string `json:"error,omitempty"`
}

// SymbolResult is one decoded symbol.
type SymbolResult struct {
	Contents    string `json:"contents"`
	Symbology   string `json:"symbology"`
	SymbologyID int    `json:"symbology_id"`
}

func symbolResults(results []scanner.Result) []SymbolResult {
	out := make([]SymbolResult, len(results))
	for i, r := range results {
		out[i] = SymbolResult{Contents: r.Contents, Symbology: r.Symbology.String(), SymbologyID: r.Symbology.ID()}
	}
	return out
}

// Processing reports how long a scan took.
type Processing struct {
	DecodeTimeMs float64 `json:"decode_time_ms"`
	TotalTimeMs  float64 `json:"total_time_ms"`
}

type ScanResponse struct {
	Success    bool           `json:"success"`
	Results    []SymbolResult `json:"results"`
	Crop       *Rect          `json:"crop,omitempty"`
	Width      int            `json:"width,omitempty"`
	Height     int            `json:"height,omitempty"`
	Processing *Processing    `json:"processing,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// NewServer creates a new scan server instance.
func NewServer(config Config) (*Server, error) {
	return newServer(config, barcode.NewEngine)
}

func newServer(config Config, factory engineFactory) (*Server, error) {
	if factory == nil {
		return nil, errors.New("server: nil engine factory")
	}
	// Probe the backend once so a bad engine name fails at startup.
	if _, err := factory(config.Engine); err != nil {
		return nil, err
	}
	if err := config.Geometry.Validate(); err != nil {
		return nil, err
	}

	symbologies := symbology.Unique(config.Symbologies)
	if len(symbologies) == 0 {
		symbologies = symbology.All()
	}

	s := &Server{
		newEngine:    factory,
		engineName:   config.Engine,
		symbologies:  symbologies,
		cacheEnabled: config.CacheEnabled,
		geometry:     config.Geometry,
		corsOrigin:   config.CORSOrigin,
		maxUploadMB:  config.MaxUploadMB,
		timeoutSec:   config.TimeoutSec,
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 20
	}
	if config.RateLimit != nil {
		s.rateLimiter = NewRateLimiter(*config.RateLimit)
	}
	return s, nil
}

// Timeout returns the per-request timeout.
func (s *Server) Timeout() time.Duration {
	return time.Duration(s.timeoutSec) * time.Second
}

// RateLimiter returns the limiter, or nil when rate limiting is off.
func (s *Server) RateLimiter() *RateLimiter { return s.rateLimiter }

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/symbologies", s.corsMiddleware(s.symbologiesHandler))
	mux.HandleFunc("/scan/region", s.corsMiddleware(s.rateLimitMiddleware(s.regionHandler)))
	mux.HandleFunc("/scan/frame", s.corsMiddleware(s.rateLimitMiddleware(s.frameHandler)))
	mux.HandleFunc("/ws/scan", s.scanWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

// newScanner builds a scanner for one request or connection.
func (s *Server) newScanner(g scanner.Geometry, list []symbology.Symbology) (*scanner.Scanner, error) {
	engine, err := s.newEngine(s.engineName)
	if err != nil {
		return nil, err
	}
	sc, err := scanner.NewStatic(engine, g)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		list = s.symbologies
	}
	if err := sc.SetSymbology(list); err != nil {
		return nil, err
	}
	return sc, nil
}
