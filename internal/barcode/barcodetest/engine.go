// Package barcodetest provides a scripted barcode.Engine for tests.
package barcodetest

import (
	"fmt"
	"image"
	"slices"

	"github.com/MeKo-Tech/scanroi/internal/barcode"
	"github.com/MeKo-Tech/scanroi/internal/frame"
)

// Call records one SetConfig invocation.
type Call struct {
	Symbol int
	Config barcode.Config
	Value  int
}

// Engine records configuration calls and returns scripted hits. Hits are
// reported only for symbol types that are currently enabled, and only when
// their Area overlaps the frame's scan area. ConfigErr fails every SetConfig
// call, or only the FailCall-th one (counting from 1) when FailCall is set.
type Engine struct {
	Calls      []Call
	Hits       []Hit
	ScanErr    error
	ConfigErr  error
	FailCall   int
	CacheOn    bool
	Scanned    []image.Rectangle
	enabled    map[int]bool
	allEnabled bool
	results    []barcode.Symbol
}

// Hit is a scripted symbol located somewhere in sensor coordinates. A zero
// Area matches every scan.
type Hit struct {
	barcode.Symbol
	Area image.Rectangle
}

// New returns an engine with everything disabled.
func New(hits ...Hit) *Engine {
	return &Engine{Hits: hits, enabled: make(map[int]bool)}
}

// SetConfig implements barcode.Engine.
func (e *Engine) SetConfig(symbol int, cfg barcode.Config, value int) error {
	e.Calls = append(e.Calls, Call{Symbol: symbol, Config: cfg, Value: value})
	if e.ConfigErr != nil && (e.FailCall == 0 || e.FailCall == len(e.Calls)) {
		return e.ConfigErr
	}
	if cfg != barcode.ConfigEnable {
		return nil
	}
	if symbol == 0 {
		e.allEnabled = value != 0
		clear(e.enabled)
		return nil
	}
	e.enabled[symbol] = value != 0
	return nil
}

// EnableCache implements barcode.Engine.
func (e *Engine) EnableCache(enable bool) { e.CacheOn = enable }

// Enabled reports whether id is currently enabled.
func (e *Engine) Enabled(id int) bool {
	if on, ok := e.enabled[id]; ok {
		return on
	}
	return e.allEnabled
}

// Scan implements barcode.Engine.
func (e *Engine) Scan(f *frame.Frame) (int, error) {
	e.results = nil
	if e.ScanErr != nil {
		return 0, e.ScanErr
	}
	if f == nil {
		return 0, barcode.ErrNilFrame
	}
	if f.Format != frame.FormatY800 {
		return 0, fmt.Errorf("%w: %q", barcode.ErrUnsupportedFormat, f.Format)
	}
	area := f.ScanArea()
	e.Scanned = append(e.Scanned, area)
	for _, h := range e.Hits {
		if !e.Enabled(h.Type) {
			continue
		}
		if !h.Area.Empty() && !h.Area.Overlaps(area) {
			continue
		}
		e.results = append(e.results, h.Symbol)
	}
	return len(e.results), nil
}

// Results implements barcode.Engine.
func (e *Engine) Results() []barcode.Symbol {
	return slices.Clone(e.results)
}
