package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/scanroi/internal/common"
	"github.com/MeKo-Tech/scanroi/internal/frame"
	"github.com/MeKo-Tech/scanroi/internal/scanner"
	"github.com/MeKo-Tech/scanroi/internal/symbology"
	"github.com/MeKo-Tech/scanroi/internal/utils"
	"github.com/MeKo-Tech/scanroi/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Engine:  s.engineName,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	writeJSON(w, http.StatusOK, response)
}

// symbologiesHandler lists the symbology table and which entries the server
// enables by default.
func (s *Server) symbologiesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	all := symbology.All()
	list := make([]SymbologyInfo, len(all))
	for i, sym := range all {
		list[i] = SymbologyInfo{
			ID:         sym.ID(),
			Name:       sym.String(),
			Dimensions: sym.Dimensions(),
			Enabled:    slices.Contains(s.symbologies, sym),
		}
	}
	writeJSON(w, http.StatusOK, SymbologiesResponse{Symbologies: list, Count: len(list)})
}

// regionHandler maps a scan rectangle to the sensor crop for a device.
func (s *Server) regionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RegionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeRegionError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	g, err := req.Geometry.apply(s.geometry)
	if err != nil {
		s.writeRegionError(w, fmt.Sprintf("Invalid geometry: %v", err), http.StatusBadRequest)
		return
	}
	sc, err := s.newScanner(g, nil)
	if err != nil {
		s.writeRegionError(w, fmt.Sprintf("Scanner unavailable: %v", err), http.StatusServiceUnavailable)
		return
	}

	sc.SetDecodeRect(req.Rect.Image())
	crop, _, err := sc.CropRect(g.Camera())
	if err != nil {
		s.writeRegionError(w, err.Error(), http.StatusBadRequest)
		return
	}

	c := RectOf(crop)
	writeJSON(w, http.StatusOK, RegionResponse{
		Success:       true,
		Crop:          &c,
		Rotation:      int(g.Rotation()),
		PreviewWidth:  g.PreviewWidth,
		PreviewHeight: g.PreviewHeight,
	})
}

// frameHandler decodes an uploaded image as one camera frame.
//
// Form fields:
//
//	image        the frame (PNG, JPEG, BMP); sensor layout unless upright is set
//	upright      "true" when the image is a photo as seen on screen
//	rect         scan rectangle "left,top,right,bottom" in view pixels
//	symbologies  comma-separated symbology names
//
// plus the geometry overrides facing, mount_angle, display_rotation, display,
// view_width and view_height. The preview size is always the sensor frame size.
func (s *Server) frameHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	total := common.NewNamedTimer("scan_frame")

	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return
	}
	img, _, err := utils.DecodeImage(bytes.NewReader(data))
	if err != nil {
		s.writeErrorResponse(w, "Invalid image format", http.StatusBadRequest)
		return
	}

	overrides, err := geometryFromForm(r)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	g, err := overrides.apply(s.geometry)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Invalid geometry: %v", err), http.StatusBadRequest)
		return
	}
	list, err := parseSymbologies(r.FormValue("symbologies"))
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	rect, hasRect, err := parseRect(r.FormValue("rect"))
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	if isTrue(r.FormValue("upright")) {
		img, err = utils.SensorImage(img, g.Rotation())
		if err != nil {
			s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	f, err := frame.FromImage(img)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer f.Release()
	g.PreviewWidth, g.PreviewHeight = f.Width, f.Height

	sc, err := s.newScanner(g, list)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Scanner unavailable: %v", err), http.StatusServiceUnavailable)
		return
	}
	if hasRect {
		sc.SetDecodeRect(rect)
	}

	resp, err := s.scan(sc, f.Data, g.Camera(), "http")
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Scan failed: %v", err), http.StatusInternalServerError)
		return
	}
	total.Stop()
	resp.Processing.TotalTimeMs = total.Milliseconds()
	writeJSON(w, http.StatusOK, resp)
}

// scan decodes one frame and records scan metrics.
func (s *Server) scan(sc *scanner.Scanner, data []byte, cam scanner.StaticCamera, transport string) (ScanResponse, error) {
	crop, hasCrop, err := sc.CropRect(cam)
	if err != nil {
		scanRequestsTotal.WithLabelValues(transport, "error").Inc()
		return ScanResponse{}, err
	}

	timer := common.NewTimer()
	results, err := sc.Decode(data, cam)
	elapsed := timer.Stop()
	scanDuration.WithLabelValues(transport).Observe(elapsed.Seconds())
	if err != nil {
		scanRequestsTotal.WithLabelValues(transport, "error").Inc()
		slog.Warn("Scan failed", "transport", transport, "error", err)
		return ScanResponse{}, err
	}
	scanRequestsTotal.WithLabelValues(transport, "success").Inc()
	for _, res := range results {
		symbolsDecoded.WithLabelValues(res.Symbology.String()).Inc()
	}

	resp := ScanResponse{
		Success:    true,
		Results:    symbolResults(results),
		Width:      cam.Width,
		Height:     cam.Height,
		Processing: &Processing{DecodeTimeMs: common.Milliseconds(elapsed)},
	}
	if hasCrop {
		c := RectOf(crop)
		resp.Crop = &c
	}
	return resp, nil
}

// geometryFromForm reads geometry overrides from form fields.
func geometryFromForm(r *http.Request) (*Geometry, error) {
	g := &Geometry{
		Facing:  r.FormValue("facing"),
		Display: r.FormValue("display"),
	}
	var err error
	if g.ViewWidth, err = formInt(r, "view_width"); err != nil {
		return nil, err
	}
	if g.ViewHeight, err = formInt(r, "view_height"); err != nil {
		return nil, err
	}
	for _, field := range []struct {
		name string
		dst  **int
	}{
		{"mount_angle", &g.MountAngle},
		{"display_rotation", &g.DisplayRotation},
	} {
		if r.FormValue(field.name) == "" {
			continue
		}
		v, err := formInt(r, field.name)
		if err != nil {
			return nil, err
		}
		*field.dst = &v
	}
	return g, nil
}

func formInt(r *http.Request, name string) (int, error) {
	v := strings.TrimSpace(r.FormValue(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, v)
	}
	return n, nil
}

// parseRect parses "left,top,right,bottom". An empty string means no rectangle.
func parseRect(s string) (image.Rectangle, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return image.Rectangle{}, false, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, false, fmt.Errorf("invalid rect %q: want left,top,right,bottom", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, false, fmt.Errorf("invalid rect %q: %w", s, err)
		}
		v[i] = n
	}
	return image.Rectangle{Min: image.Pt(v[0], v[1]), Max: image.Pt(v[2], v[3])}, true, nil
}

// parseSymbologies parses a comma-separated list. An empty string returns nil,
// which keeps the server default.
func parseSymbologies(s string) ([]symbology.Symbology, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return symbology.ParseList(strings.Split(s, ","))
}

func isTrue(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, ScanResponse{Success: false, Error: message})
}

func (s *Server) writeRegionError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, RegionResponse{Success: false, Error: message})
}
