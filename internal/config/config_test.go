package config

import (
	"image"
	"strings"
	"testing"

	"github.com/MeKo-Tech/scanroi/internal/orientation"
	"github.com/MeKo-Tech/scanroi/internal/symbology"
)

const (
	debugLevel = "debug"
	infoLevel  = "info"
)

// TestDefaultConfigValidates tests that the defaults pass validation.
func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error: %v", err)
	}
	if cfg.LogLevel != infoLevel {
		t.Errorf("Expected default log level %s, got %s", infoLevel, cfg.LogLevel)
	}
	if cfg.Scanner.Engine != "zxing" {
		t.Errorf("Expected default engine zxing, got %s", cfg.Scanner.Engine)
	}
}

// TestValidate tests validation failures.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"engine", func(c *Config) { c.Scanner.Engine = "zbar" }, "invalid scanner engine"},
		{"symbology", func(c *Config) { c.Scanner.Symbologies = []string{"qr", "maxicode"} }, "invalid scanner symbologies"},
		{"decode rect", func(c *Config) { c.Scanner.DecodeRect = []int{1, 2, 3} }, "invalid decode rect"},
		{"facing", func(c *Config) { c.Camera.Facing = "side" }, "invalid camera facing"},
		{"mount angle", func(c *Config) { c.Camera.MountAngle = 45 }, "invalid camera mount angle"},
		{"display rotation", func(c *Config) { c.Camera.DisplayRotation = 4 }, "invalid display rotation"},
		{"preview", func(c *Config) { c.Camera.PreviewWidth = 0 }, "invalid preview size"},
		{"view", func(c *Config) { c.Camera.ViewHeight = -1 }, "invalid view size"},
		{"display", func(c *Config) { c.Camera.Display = "square" }, "invalid display orientation"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "invalid max upload size"},
		{"timeout", func(c *Config) { c.Server.TimeoutSec = 0 }, "invalid timeout"},
		{"rate limit", func(c *Config) { c.Server.RateLimit.RequestsPerHour = -1 }, "invalid rate limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

// TestSymbologyList tests symbology name resolution.
func TestSymbologyList(t *testing.T) {
	cfg := DefaultConfig()
	list, err := cfg.SymbologyList()
	if err != nil {
		t.Fatalf("SymbologyList() error: %v", err)
	}
	if len(list) != len(symbology.All()) {
		t.Errorf("Expected all %d symbologies, got %d", len(symbology.All()), len(list))
	}

	cfg.Scanner.Symbologies = nil
	list, _ = cfg.SymbologyList()
	if len(list) != len(symbology.All()) {
		t.Errorf("Expected empty list to select all symbologies, got %d", len(list))
	}

	cfg.Scanner.Symbologies = []string{"QR", "ean-13", "qrcode"}
	list, err = cfg.SymbologyList()
	if err != nil {
		t.Fatalf("SymbologyList() error: %v", err)
	}
	if len(list) != 2 || list[0] != symbology.EAN13 || list[1] != symbology.QRCode {
		t.Errorf("Unexpected symbologies: %v", list)
	}
}

// TestDecodeRect tests the scan rectangle conversion.
func TestDecodeRect(t *testing.T) {
	cfg := DefaultConfig()
	if _, ok, err := cfg.DecodeRect(); ok || err != nil {
		t.Errorf("Expected no decode rect by default, got ok=%v err=%v", ok, err)
	}

	cfg.Scanner.DecodeRect = []int{100, 200, 500, 800}
	r, ok, err := cfg.DecodeRect()
	if err != nil || !ok {
		t.Fatalf("DecodeRect() ok=%v err=%v", ok, err)
	}
	if r != image.Rect(100, 200, 500, 800) {
		t.Errorf("Unexpected decode rect: %v", r)
	}
}

// TestDisplayOrientation tests explicit and derived display orientation.
func TestDisplayOrientation(t *testing.T) {
	cfg := DefaultConfig()
	if o, _ := cfg.DisplayOrientation(); o != orientation.OrientationPortrait {
		t.Errorf("Expected portrait from 1080x1920 view, got %v", o)
	}

	cfg.Camera.ViewWidth, cfg.Camera.ViewHeight = 1920, 1080
	if o, _ := cfg.DisplayOrientation(); o != orientation.OrientationLandscape {
		t.Errorf("Expected landscape from 1920x1080 view, got %v", o)
	}

	cfg.Camera.Display = "Portrait"
	if o, err := cfg.DisplayOrientation(); err != nil || o != orientation.OrientationPortrait {
		t.Errorf("Expected explicit portrait, got %v (err %v)", o, err)
	}
}

// TestEffectiveRotation tests the rotation derived from camera settings.
func TestEffectiveRotation(t *testing.T) {
	cfg := DefaultConfig()
	if r := cfg.EffectiveRotation(); r != orientation.Rotation90 {
		t.Errorf("Expected 90, got %d", r)
	}

	cfg.Camera.Facing = "front"
	cfg.Camera.MountAngle = 270
	cfg.Camera.DisplayRotation = 1
	// front: (360 - (270 + 90) % 360) % 360
	if r := cfg.EffectiveRotation(); r != orientation.Rotation0 {
		t.Errorf("Expected 0, got %d", r)
	}
}

func TestGeometry(t *testing.T) {
	cfg := DefaultConfig()
	g, err := cfg.Geometry()
	if err != nil {
		t.Fatalf("Geometry() error: %v", err)
	}
	if g.PreviewWidth != 640 || g.PreviewHeight != 480 {
		t.Errorf("Expected 640x480 preview, got %dx%d", g.PreviewWidth, g.PreviewHeight)
	}
	if g.Display != orientation.OrientationPortrait {
		t.Errorf("Expected auto display to resolve to portrait, got %s", g.Display)
	}
	if g.Rotation() != cfg.EffectiveRotation() {
		t.Errorf("Expected rotation %d, got %d", cfg.EffectiveRotation(), g.Rotation())
	}

	cfg.Camera.Display = "sideways"
	if _, err := cfg.Geometry(); err == nil {
		t.Error("Expected error for unknown display orientation")
	}

	cfg = DefaultConfig()
	cfg.Camera.PreviewWidth = 0
	if _, err := cfg.Geometry(); err == nil {
		t.Error("Expected error for empty preview")
	}
}
