// Package symbology enumerates the barcode standards a scanner can decode.
//
// Each symbology carries the stable numeric id the decoding engine uses to
// report it. The table is fixed at compile time and never mutated; All
// returns a fresh copy so callers cannot alter the default set.
package symbology

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// Symbology is a barcode standard identified by its engine id.
type Symbology int

const (
	Unknown    Symbology = -1
	None       Symbology = 0
	EAN8       Symbology = 8
	UPCE       Symbology = 9
	ISBN10     Symbology = 10
	UPCA       Symbology = 12
	EAN13      Symbology = 13
	ISBN13     Symbology = 14
	I25        Symbology = 25
	DataBar    Symbology = 34
	DataBarExp Symbology = 35
	Codabar    Symbology = 38
	Code39     Symbology = 39
	PDF417     Symbology = 57
	QRCode     Symbology = 64
	Code93     Symbology = 93
	Code128    Symbology = 128
)

type info struct {
	name string
	dims int
}

var table = map[Symbology]info{
	EAN8:       {"EAN-8", 1},
	UPCE:       {"UPC-E", 1},
	ISBN10:     {"ISBN-10", 1},
	UPCA:       {"UPC-A", 1},
	EAN13:      {"EAN-13", 1},
	ISBN13:     {"ISBN-13", 1},
	I25:        {"I2/5", 1},
	DataBar:    {"DataBar", 1},
	DataBarExp: {"DataBar-Exp", 1},
	Codabar:    {"Codabar", 1},
	Code39:     {"Code-39", 1},
	PDF417:     {"PDF417", 2},
	QRCode:     {"QR-Code", 2},
	Code93:     {"Code-93", 1},
	Code128:    {"Code-128", 1},
}

// all lists every known symbology in id order.
var all = func() []Symbology {
	out := make([]Symbology, 0, len(table))
	for s := range table {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}()

var aliases = map[string]Symbology{
	"qr":              QRCode,
	"itf":             I25,
	"interleaved2of5": I25,
	"rss14":           DataBar,
	"rssexpanded":     DataBarExp,
	"pdf":             PDF417,
}

var lookup = func() map[string]Symbology {
	m := make(map[string]Symbology, len(table)+len(aliases))
	for s, i := range table {
		m[normalizeName(i.name)] = s
	}
	for k, s := range aliases {
		m[k] = s
	}
	return m
}()

// normalizeName folds case and drops separators so "EAN-13", "ean_13" and
// "ean13" compare equal.
func normalizeName(s string) string {
	s = cases.Fold().String(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// All returns the default enabled set: every known symbology, in id order.
func All() []Symbology {
	return slices.Clone(all)
}

// ID returns the engine id.
func (s Symbology) ID() int { return int(s) }

// Known reports whether s is in the symbology table.
func (s Symbology) Known() bool {
	_, ok := table[s]
	return ok
}

// Dimensions returns 1 for linear symbologies, 2 for stacked and matrix ones
// and 0 for unknown values.
func (s Symbology) Dimensions() int {
	return table[s].dims
}

// String returns the display name.
func (s Symbology) String() string {
	if i, ok := table[s]; ok {
		return i.name
	}
	if s == None {
		return "NONE"
	}
	return "UNKNOWN"
}

// MarshalText implements encoding.TextMarshaler.
func (s Symbology) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Symbology) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// FromID resolves an engine id. Ids outside the table resolve to Unknown.
func FromID(id int) Symbology {
	s := Symbology(id)
	if s.Known() {
		return s
	}
	return Unknown
}

// Parse resolves a symbology by name, ignoring case and separators.
func Parse(name string) (Symbology, error) {
	if s, ok := lookup[normalizeName(name)]; ok {
		return s, nil
	}
	return Unknown, fmt.Errorf("unknown symbology: %q", name)
}

// ParseList parses names into a de-duplicated set. "all" expands to All.
func ParseList(names []string) ([]Symbology, error) {
	out := make([]Symbology, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if normalizeName(n) == "all" {
			out = append(out, all...)
			continue
		}
		s, err := Parse(n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return Unique(out), nil
}

// Unique returns the known symbologies of list with duplicates removed, in id
// order. The result never aliases list.
func Unique(list []Symbology) []Symbology {
	out := make([]Symbology, 0, len(list))
	for _, s := range list {
		if s.Known() {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Names returns the display names of list.
func Names(list []Symbology) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.String()
	}
	return out
}
