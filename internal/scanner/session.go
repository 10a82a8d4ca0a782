package scanner

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/MeKo-Tech/scanroi/internal/barcode"
	"github.com/MeKo-Tech/scanroi/internal/frame"
	"github.com/MeKo-Tech/scanroi/internal/symbology"
)

// Density is the scan density applied on every axis whenever the enabled
// symbologies change.
const Density = 3

// Configuration is the decode configuration currently applied to an engine.
type Configuration struct {
	Symbologies  []symbology.Symbology `json:"symbologies"`
	CacheEnabled bool                  `json:"cache_enabled"`
	XDensity     int                   `json:"x_density"`
	YDensity     int                   `json:"y_density"`
}

// Session drives one decoding engine.
type Session struct {
	engine     barcode.Engine
	config     Configuration
	configured bool
}

// NewSession configures engine for every known symbology.
func NewSession(engine barcode.Engine) (*Session, error) {
	if engine == nil {
		return nil, errors.New("scanner: nil engine")
	}
	s := &Session{engine: engine}
	if err := s.Configure(symbology.All()); err != nil {
		return nil, err
	}
	return s, nil
}

// Configure disables every symbology on the engine, enables exactly list and
// resets the scan density. Duplicates and unknown entries in list are ignored.
// On failure the engine is reconfigured with the previous symbologies and the
// previous Configuration is kept.
func (s *Session) Configure(list []symbology.Symbology) error {
	enabled := symbology.Unique(list)

	if err := s.apply(enabled); err != nil {
		if s.configured {
			if rerr := s.apply(s.config.Symbologies); rerr != nil {
				slog.Error("Decoder rollback failed", "error", rerr)
				return errors.Join(err, fmt.Errorf("%w: rollback: %w", ErrEngine, rerr))
			}
		}
		return err
	}

	s.config.Symbologies = enabled
	s.config.XDensity = Density
	s.config.YDensity = Density
	s.configured = true
	slog.Debug("Decoder configured", "symbologies", symbology.Names(enabled), "density", Density)
	return nil
}

func (s *Session) apply(enabled []symbology.Symbology) error {
	if err := s.engine.SetConfig(int(symbology.None), barcode.ConfigEnable, 0); err != nil {
		return fmt.Errorf("%w: disable symbologies: %w", ErrEngine, err)
	}
	for _, sym := range enabled {
		if err := s.engine.SetConfig(sym.ID(), barcode.ConfigEnable, 1); err != nil {
			return fmt.Errorf("%w: enable %s: %w", ErrEngine, sym, err)
		}
	}
	if err := s.engine.SetConfig(int(symbology.None), barcode.ConfigXDensity, Density); err != nil {
		return fmt.Errorf("%w: set x density: %w", ErrEngine, err)
	}
	if err := s.engine.SetConfig(int(symbology.None), barcode.ConfigYDensity, Density); err != nil {
		return fmt.Errorf("%w: set y density: %w", ErrEngine, err)
	}
	return nil
}

// SetCacheEnabled toggles de-duplication of symbols across frames.
func (s *Session) SetCacheEnabled(enable bool) {
	s.engine.EnableCache(enable)
	s.config.CacheEnabled = enable
}

// Configuration returns a copy of the applied configuration.
func (s *Session) Configuration() Configuration {
	c := s.config
	c.Symbologies = slices.Clone(s.config.Symbologies)
	return c
}

// Decode scans f, honoring its crop, and returns the symbols found. Finding
// nothing is not an error: the result is then an empty slice.
func (s *Session) Decode(f *frame.Frame) ([]Result, error) {
	if f == nil {
		return nil, fmt.Errorf("scanner: %w", barcode.ErrNilFrame)
	}
	n, err := s.engine.Scan(f)
	if err != nil {
		slog.Warn("Decoding engine failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrEngine, err)
	}
	if n == 0 {
		return []Result{}, nil
	}
	return Normalize(s.engine.Results()), nil
}
