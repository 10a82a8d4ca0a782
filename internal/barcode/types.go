package barcode

import (
	"errors"

	"github.com/MeKo-Tech/scanroi/internal/frame"
)

// Config is an engine configuration key. Values follow the zbar numbering.
type Config int

const (
	// ConfigEnable switches a symbology on (1) or off (0). Applied to symbol
	// id 0 it affects every symbology.
	ConfigEnable Config = 0
	// ConfigXDensity is the horizontal scan density: scan every Nth column.
	ConfigXDensity Config = 0x100
	// ConfigYDensity is the vertical scan density: scan every Nth row.
	ConfigYDensity Config = 0x101
)

// String returns the configuration key name.
func (c Config) String() string {
	switch c {
	case ConfigEnable:
		return "enable"
	case ConfigXDensity:
		return "x-density"
	case ConfigYDensity:
		return "y-density"
	default:
		return "unknown"
	}
}

var (
	// ErrUnsupportedConfig is returned for configuration keys an engine does not know.
	ErrUnsupportedConfig = errors.New("barcode: unsupported configuration key")

	// ErrUnsupportedFormat is returned when a frame is not a Y800 luma plane.
	ErrUnsupportedFormat = errors.New("barcode: unsupported pixel format")

	// ErrNilFrame is returned when Scan is called without a frame.
	ErrNilFrame = errors.New("barcode: nil frame")
)

// Symbol is one raw hit reported by an engine.
type Symbol struct {
	// Data is the decoded payload. Engines may report empty payloads.
	Data string
	// Type is the engine's numeric symbology id.
	Type int
}

// Engine is a decoding engine capability.
type Engine interface {
	// SetConfig sets a configuration value for one symbology id, or for all
	// of them when symbol is 0.
	SetConfig(symbol int, cfg Config, value int) error

	// EnableCache toggles de-duplication of symbols across consecutive scans.
	EnableCache(enable bool)

	// Scan decodes the frame's scan area and returns the number of symbols found.
	Scan(f *frame.Frame) (int, error)

	// Results returns the symbols found by the last successful Scan.
	Results() []Symbol
}
