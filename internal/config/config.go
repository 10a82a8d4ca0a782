package config

import (
	"fmt"
	"image"
	"slices"
	"strings"

	"github.com/MeKo-Tech/scanroi/internal/barcode"
	"github.com/MeKo-Tech/scanroi/internal/orientation"
	"github.com/MeKo-Tech/scanroi/internal/scanner"
	"github.com/MeKo-Tech/scanroi/internal/symbology"
)

// DefaultConfig returns a configuration with sensible defaults: a portrait
// phone with a back camera mounted at 90 degrees and every symbology enabled.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Scanner: ScannerConfig{
			Engine:       barcode.DefaultEngine,
			Symbologies:  []string{"all"},
			CacheEnabled: false,
		},
		Camera: CameraConfig{
			Facing:          "back",
			MountAngle:      90,
			PreviewWidth:    640,
			PreviewHeight:   480,
			DisplayRotation: 0,
			Display:         "auto",
			ViewWidth:       1080,
			ViewHeight:      1920,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     20,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 600,
				RequestsPerHour:   10000,
				MaxRequestsPerDay: 0,
				MaxDataPerDayMB:   0,
			},
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Scanner.Engine != "" && !slices.Contains(barcode.EngineNames(), strings.ToLower(c.Scanner.Engine)) {
		return fmt.Errorf("invalid scanner engine: %s (must be one of: %s)", c.Scanner.Engine, strings.Join(barcode.EngineNames(), ", "))
	}
	if _, err := c.SymbologyList(); err != nil {
		return fmt.Errorf("invalid scanner symbologies: %w", err)
	}
	if _, _, err := c.DecodeRect(); err != nil {
		return err
	}

	if _, err := orientation.ParseFacing(c.Camera.Facing); err != nil {
		return err
	}
	if !orientation.Rotation(c.Camera.MountAngle).Valid() {
		return fmt.Errorf("invalid camera mount angle: %d (must be 0, 90, 180 or 270)", c.Camera.MountAngle)
	}
	if c.Camera.DisplayRotation < 0 || c.Camera.DisplayRotation > 3 {
		return fmt.Errorf("invalid display rotation: %d (must be between 0 and 3)", c.Camera.DisplayRotation)
	}
	if c.Camera.PreviewWidth <= 0 || c.Camera.PreviewHeight <= 0 {
		return fmt.Errorf("invalid preview size: %dx%d (must be positive)", c.Camera.PreviewWidth, c.Camera.PreviewHeight)
	}
	if c.Camera.ViewWidth <= 0 || c.Camera.ViewHeight <= 0 {
		return fmt.Errorf("invalid view size: %dx%d (must be positive)", c.Camera.ViewWidth, c.Camera.ViewHeight)
	}
	if _, err := c.DisplayOrientation(); err != nil {
		return err
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	rl := c.Server.RateLimit
	if rl.RequestsPerMinute < 0 || rl.RequestsPerHour < 0 || rl.MaxRequestsPerDay < 0 || rl.MaxDataPerDayMB < 0 {
		return fmt.Errorf("invalid rate limit: limits must not be negative")
	}

	return nil
}

// SymbologyList resolves the configured symbology names. An empty list
// selects every symbology.
func (c *Config) SymbologyList() ([]symbology.Symbology, error) {
	if len(c.Scanner.Symbologies) == 0 {
		return symbology.All(), nil
	}
	return symbology.ParseList(c.Scanner.Symbologies)
}

// DecodeRect returns the configured scan rectangle. The boolean is false
// when none is configured.
func (c *Config) DecodeRect() (image.Rectangle, bool, error) {
	r := c.Scanner.DecodeRect
	switch len(r) {
	case 0:
		return image.Rectangle{}, false, nil
	case 4:
		return image.Rectangle{Min: image.Pt(r[0], r[1]), Max: image.Pt(r[2], r[3])}, true, nil
	default:
		return image.Rectangle{}, false, fmt.Errorf("invalid decode rect: %v (want left, top, right, bottom)", r)
	}
}

// Facing returns the parsed camera facing.
func (c *Config) Facing() orientation.Facing {
	f, err := orientation.ParseFacing(c.Camera.Facing)
	if err != nil {
		return orientation.FacingBack
	}
	return f
}

// DisplayOrientation returns the configured display orientation, deriving it
// from the view size when set to "auto" or left empty.
func (c *Config) DisplayOrientation() (orientation.DisplayOrientation, error) {
	switch strings.ToLower(strings.TrimSpace(c.Camera.Display)) {
	case "", "auto":
		return orientation.ClassifyDisplay(c.Camera.ViewWidth, c.Camera.ViewHeight), nil
	default:
		return orientation.ParseDisplayOrientation(c.Camera.Display)
	}
}

// EffectiveRotation returns the rotation between sensor frames and the display.
func (c *Config) EffectiveRotation() orientation.Rotation {
	return orientation.EffectiveRotation(c.Camera.MountAngle, c.Facing(), c.Camera.DisplayRotation)
}

// Geometry returns the simulated device described by the camera section.
func (c *Config) Geometry() (scanner.Geometry, error) {
	display, err := c.DisplayOrientation()
	if err != nil {
		return scanner.Geometry{}, err
	}
	g := scanner.Geometry{
		PreviewWidth:  c.Camera.PreviewWidth,
		PreviewHeight: c.Camera.PreviewHeight,
		Facing:        c.Facing(),
		MountAngle:    c.Camera.MountAngle,
		DisplaySteps:  c.Camera.DisplayRotation,
		Display:       display,
		ViewWidth:     c.Camera.ViewWidth,
		ViewHeight:    c.Camera.ViewHeight,
	}
	return g, g.Validate()
}
