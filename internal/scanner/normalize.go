package scanner

import (
	"github.com/MeKo-Tech/scanroi/internal/barcode"
	"github.com/MeKo-Tech/scanroi/internal/symbology"
)

// Result is one decoded symbol.
type Result struct {
	Contents  string              `json:"contents"`
	Symbology symbology.Symbology `json:"symbology"`
}

// Normalize converts raw engine hits into results. Hits with an empty payload
// are dropped; ids the symbology table does not know are reported as
// symbology.Unknown rather than discarded.
func Normalize(hits []barcode.Symbol) []Result {
	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		if h.Data == "" {
			continue
		}
		out = append(out, Result{Contents: h.Data, Symbology: symbology.FromID(h.Type)})
	}
	return out
}
