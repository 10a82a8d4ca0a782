package server

import (
	"bytes"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/scanroi/internal/barcode"
	"github.com/MeKo-Tech/scanroi/internal/barcode/barcodetest"
	"github.com/MeKo-Tech/scanroi/internal/symbology"
	"github.com/MeKo-Tech/scanroi/internal/testutil"
	"github.com/MeKo-Tech/scanroi/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_HealthHandler(t *testing.T) {
	server := &Server{engineName: "zxing"}

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{"GET request success", http.MethodGet, http.StatusOK},
		{"POST request not allowed", http.MethodPost, http.StatusMethodNotAllowed},
		{"PUT request not allowed", http.MethodPut, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			server.healthHandler(w, httptest.NewRequest(tt.method, "/health", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus != http.StatusOK {
				return
			}
			var response HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, "healthy", response.Status)
			assert.Equal(t, version.Version, response.Version)
			assert.Equal(t, "zxing", response.Engine)
			assert.NotEmpty(t, response.Time)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestServer_SymbologiesHandler(t *testing.T) {
	cfg := testConfig()
	cfg.Symbologies = []symbology.Symbology{symbology.QRCode, symbology.EAN13}
	server, _ := newScriptedServer(t, cfg)

	w := httptest.NewRecorder()
	server.symbologiesHandler(w, httptest.NewRequest(http.MethodGet, "/symbologies", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var response SymbologiesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, len(symbology.All()), response.Count)
	require.Len(t, response.Symbologies, response.Count)

	enabled := map[string]bool{}
	for _, s := range response.Symbologies {
		if s.Enabled {
			enabled[s.Name] = true
		}
		if s.ID == int(symbology.QRCode) {
			assert.Equal(t, 2, s.Dimensions)
		}
	}
	assert.Equal(t, map[string]bool{"QR-Code": true, "EAN-13": true}, enabled)

	w = httptest.NewRecorder()
	server.symbologiesHandler(w, httptest.NewRequest(http.MethodPost, "/symbologies", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func postRegion(t *testing.T, server *Server, body string) (*httptest.ResponseRecorder, RegionResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	server.regionHandler(w, httptest.NewRequest(http.MethodPost, "/scan/region", bytes.NewBufferString(body)))
	var response RegionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return w, response
}

func TestServer_RegionHandler(t *testing.T) {
	server, _ := newScriptedServer(t, testConfig())

	t.Run("default geometry", func(t *testing.T) {
		w, response := postRegion(t, server, `{"rect":{"left":100,"top":200,"right":500,"bottom":800}}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, response.Success)
		require.NotNil(t, response.Crop)
		assert.Equal(t, Rect{Left: 66, Top: 258, Right: 266, Bottom: 436}, *response.Crop)
		assert.Equal(t, 90, response.Rotation)
		assert.Equal(t, 640, response.PreviewWidth)
	})

	t.Run("geometry override", func(t *testing.T) {
		body := `{"rect":{"left":10,"top":20,"right":110,"bottom":220},
			"geometry":{"mount_angle":0,"view_width":640,"view_height":480,"display":"auto"}}`
		w, response := postRegion(t, server, body)
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, response.Crop)
		assert.Equal(t, Rect{Left: 10, Top: 20, Right: 110, Bottom: 220}, *response.Crop)
		assert.Equal(t, 0, response.Rotation)
	})

	t.Run("invalid geometry", func(t *testing.T) {
		w, response := postRegion(t, server, `{"rect":{},"geometry":{"mount_angle":45}}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, response.Success)
		assert.Contains(t, response.Error, "Invalid geometry")
	})

	t.Run("invalid body", func(t *testing.T) {
		w, response := postRegion(t, server, `{"rect":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid request body", response.Error)
	})

	t.Run("method not allowed", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.regionHandler(w, httptest.NewRequest(http.MethodGet, "/scan/region", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func postFrame(t *testing.T, server *Server, req *http.Request) (*httptest.ResponseRecorder, ScanResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	server.frameHandler(w, req)
	var response ScanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return w, response
}

func TestServer_FrameHandler_Upright(t *testing.T) {
	server := newZXingServer(t, testConfig())
	png := encodeImageToPNG(t, uprightScene(t))

	tests := []struct {
		name string
		rect string
		want string
	}{
		{"top half of the screen", "0,0,1080,1080", "inside"},
		{"bottom half of the screen", "0,1080,1080,1920", "outside"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := createMultipartFormRequest(t, png, map[string]string{
				"upright":     "true",
				"rect":        tt.rect,
				"symbologies": "qr",
			})
			w, response := postFrame(t, server, req)
			require.Equal(t, http.StatusOK, w.Code, response.Error)

			assert.True(t, response.Success)
			assert.Equal(t, []SymbolResult{{Contents: tt.want, Symbology: "QR-Code", SymbologyID: 64}}, response.Results)
			assert.Equal(t, 640, response.Width)
			assert.Equal(t, 480, response.Height)
			require.NotNil(t, response.Crop)
			require.NotNil(t, response.Processing)
		})
	}
}

func TestServer_FrameHandler_SensorLayout(t *testing.T) {
	server := newZXingServer(t, testConfig())
	scene := testutil.Scene(640, 320,
		testutil.Placement{Symbol: testutil.QRCode(t, "left", 200), At: image.Pt(40, 60)},
		testutil.Placement{Symbol: testutil.QRCode(t, "right", 200), At: image.Pt(400, 60)},
	)

	// With the view matching the sensor and no rotation, view pixels are
	// sensor pixels.
	req := createMultipartFormRequest(t, encodeImageToPNG(t, scene), map[string]string{
		"rect":        "320,0,640,320",
		"symbologies": "qrcode",
		"mount_angle": "0",
		"view_width":  "640",
		"view_height": "320",
		"display":     "auto",
	})
	w, response := postFrame(t, server, req)
	require.Equal(t, http.StatusOK, w.Code, response.Error)
	require.Len(t, response.Results, 1)
	assert.Equal(t, "right", response.Results[0].Contents)
	assert.Equal(t, &Rect{Left: 320, Top: 0, Right: 640, Bottom: 320}, response.Crop)
}

func TestServer_FrameHandler_NoSymbol(t *testing.T) {
	hit := barcodetest.Hit{Symbol: barcode.Symbol{Data: "123", Type: int(symbology.EAN13)}}
	server, engines := newScriptedServer(t, testConfig(), hit)
	png := encodeImageToPNG(t, testutil.Scene(64, 48))

	w, response := postFrame(t, server, createMultipartFormRequest(t, png, map[string]string{"symbologies": "qr"}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, response.Success)
	assert.Empty(t, response.Results)
	assert.Nil(t, response.Crop)

	w, response = postFrame(t, server, createMultipartFormRequest(t, png, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []SymbolResult{{Contents: "123", Symbology: "EAN-13", SymbologyID: 13}}, response.Results)

	// one probe engine at startup plus one per request
	assert.Len(t, *engines, 3)
}

func TestServer_FrameHandler_Errors(t *testing.T) {
	server, _ := newScriptedServer(t, testConfig())
	png := encodeImageToPNG(t, testutil.Scene(64, 48))

	tests := []struct {
		name    string
		data    []byte
		fields  map[string]string
		status  int
		message string
	}{
		{"missing image", nil, map[string]string{"rect": "0,0,1,1"}, http.StatusBadRequest, "No image file provided"},
		{"not an image", []byte("not an image"), nil, http.StatusBadRequest, "Invalid image format"},
		{"bad rect", png, map[string]string{"rect": "1,2,3"}, http.StatusBadRequest, "invalid rect"},
		{"bad symbology", png, map[string]string{"symbologies": "qr,morse"}, http.StatusBadRequest, "unknown symbology"},
		{"bad mount angle", png, map[string]string{"mount_angle": "abc"}, http.StatusBadRequest, "invalid mount_angle"},
		{"bad facing", png, map[string]string{"facing": "up"}, http.StatusBadRequest, "Invalid geometry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, response := postFrame(t, server, createMultipartFormRequest(t, tt.data, tt.fields))
			assert.Equal(t, tt.status, w.Code)
			assert.False(t, response.Success)
			assert.Contains(t, response.Error, tt.message)
		})
	}

	t.Run("method not allowed", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.frameHandler(w, httptest.NewRequest(http.MethodGet, "/scan/frame", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestParseRect(t *testing.T) {
	r, ok, err := parseRect(" 1, 2 ,3,4 ")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, image.Rect(1, 2, 3, 4), r)

	_, ok, err = parseRect("")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = parseRect("1,2,x,4")
	assert.Error(t, err)
}

func TestParseSymbologies(t *testing.T) {
	list, err := parseSymbologies("")
	require.NoError(t, err)
	assert.Nil(t, list)

	list, err = parseSymbologies("EAN-13, qr ,ean13")
	require.NoError(t, err)
	assert.Equal(t, []symbology.Symbology{symbology.EAN13, symbology.QRCode}, list)
}

func TestServer_WriteErrorResponse(t *testing.T) {
	server := &Server{}
	w := httptest.NewRecorder()
	server.writeErrorResponse(w, "Invalid input", http.StatusBadRequest)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response ScanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.False(t, response.Success)
	assert.Equal(t, "Invalid input", response.Error)
}

func TestNewServer(t *testing.T) {
	t.Run("unknown engine", func(t *testing.T) {
		cfg := testConfig()
		cfg.Engine = "zbar"
		_, err := NewServer(cfg)
		assert.ErrorIs(t, err, barcode.ErrNoBackend)
	})

	t.Run("invalid geometry", func(t *testing.T) {
		cfg := testConfig()
		cfg.Geometry.ViewWidth = 0
		_, err := NewServer(cfg)
		assert.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		cfg := testConfig()
		cfg.MaxUploadMB = 0
		cfg.RateLimit = &Limits{RequestsPerMinute: 5}
		s := newZXingServer(t, cfg)
		assert.Equal(t, symbology.All(), s.symbologies)
		assert.Equal(t, int64(20), s.maxUploadMB)
		require.NotNil(t, s.RateLimiter())
		assert.Equal(t, 5, s.RateLimiter().Limits().RequestsPerMinute)
		assert.Equal(t, "localhost:8080", cfg.Addr())
	})
}

func TestServer_SetupRoutes(t *testing.T) {
	server := newZXingServer(t, testConfig())
	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	for _, path := range []string{"/health", "/symbologies", "/metrics"} {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), "scanroi_http_requests_total")
}

func BenchmarkServer_HealthHandler(b *testing.B) {
	server := &Server{}
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	b.ResetTimer()
	for range b.N {
		server.healthHandler(httptest.NewRecorder(), req)
	}
}
