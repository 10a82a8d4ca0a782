package barcode

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/MeKo-Tech/scanroi/internal/frame"
	"github.com/MeKo-Tech/scanroi/internal/symbology"
	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/pdf417"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// defaultDensity matches the density zbar starts with.
const defaultDensity = 1

// readerFactories maps symbologies to the gozxing reader that decodes them.
// ISBN-10 and ISBN-13 are EAN-13 symbols with a Bookland prefix and share its
// reader. DataBar has no reader and never produces hits.
var readerFactories = map[symbology.Symbology]func() gozxing.Reader{
	symbology.EAN8:    func() gozxing.Reader { return oned.NewEAN8Reader() },
	symbology.UPCE:    func() gozxing.Reader { return oned.NewUPCEReader() },
	symbology.UPCA:    func() gozxing.Reader { return oned.NewUPCAReader() },
	symbology.EAN13:   func() gozxing.Reader { return oned.NewEAN13Reader() },
	symbology.I25:     func() gozxing.Reader { return oned.NewITFReader() },
	symbology.Codabar: func() gozxing.Reader { return oned.NewCodaBarReader() },
	symbology.Code39:  func() gozxing.Reader { return oned.NewCode39Reader() },
	symbology.Code93:  func() gozxing.Reader { return oned.NewCode93Reader() },
	symbology.Code128: func() gozxing.Reader { return oned.NewCode128Reader() },
	symbology.PDF417:  func() gozxing.Reader { return pdf417.NewPDF417Reader() },
	symbology.QRCode:  func() gozxing.Reader { return qrcode.NewQRCodeReader() },
}

// ZXingEngine is an Engine backed by the gozxing readers. It ingests Y800
// planes directly through a planar luminance source, so the crop is applied
// without copying the frame.
type ZXingEngine struct {
	enabled  map[symbology.Symbology]bool
	xDensity int
	yDensity int
	cacheOn  bool
	cache    *resultCache
	results  []Symbol
}

// NewZXingEngine returns an engine with every symbology disabled.
func NewZXingEngine() (*ZXingEngine, error) {
	cache, err := newResultCache(defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("barcode: create result cache: %w", err)
	}
	return &ZXingEngine{
		enabled:  make(map[symbology.Symbology]bool),
		xDensity: defaultDensity,
		yDensity: defaultDensity,
		cache:    cache,
	}, nil
}

// SetConfig implements Engine.
func (e *ZXingEngine) SetConfig(symbol int, cfg Config, value int) error {
	switch cfg {
	case ConfigEnable:
		if symbol == int(symbology.None) {
			for _, s := range symbology.All() {
				e.enabled[s] = value != 0
			}
		} else {
			s := symbology.FromID(symbol)
			if s == symbology.Unknown {
				return fmt.Errorf("barcode: unknown symbology id %d", symbol)
			}
			e.enabled[s] = value != 0
		}
	case ConfigXDensity, ConfigYDensity:
		if value < 0 {
			return fmt.Errorf("barcode: %s must not be negative, got %d", cfg, value)
		}
		if cfg == ConfigXDensity {
			e.xDensity = value
		} else {
			e.yDensity = value
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedConfig, int(cfg))
	}
	e.cache.reset()
	return nil
}

// EnableCache implements Engine.
func (e *ZXingEngine) EnableCache(enable bool) {
	e.cacheOn = enable
	e.cache.reset()
}

// Enabled returns the enabled symbologies in id order.
func (e *ZXingEngine) Enabled() []symbology.Symbology {
	out := make([]symbology.Symbology, 0, len(e.enabled))
	for s, on := range e.enabled {
		if on {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return out
}

// Density returns the horizontal and vertical scan density.
func (e *ZXingEngine) Density() (int, int) {
	return e.xDensity, e.yDensity
}

// Results implements Engine.
func (e *ZXingEngine) Results() []Symbol {
	return slices.Clone(e.results)
}

// Scan implements Engine.
func (e *ZXingEngine) Scan(f *frame.Frame) (int, error) {
	e.results = nil
	if f == nil {
		return 0, ErrNilFrame
	}
	if f.Format != frame.FormatY800 {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f.Format)
	}
	if e.xDensity == 0 && e.yDensity == 0 {
		// zbar disables scanning entirely when both densities are zero.
		return 0, nil
	}
	area := f.ScanArea()
	if area.Empty() {
		return 0, nil
	}

	source, err := gozxing.NewPlanarYUVLuminanceSource(
		f.Data, f.Width, f.Height, area.Min.X, area.Min.Y, area.Dx(), area.Dy(), false)
	if err != nil {
		return 0, fmt.Errorf("barcode: build luminance source: %w", err)
	}
	bitmap, err := gozxing.NewBinaryBitmap(gozxing.NewHybridBinarizer(source))
	if err != nil {
		return 0, fmt.Errorf("barcode: binarize frame: %w", err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{}
	if e.xDensity == 1 || e.yDensity == 1 {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	var hits []Symbol
	for _, s := range e.readerOrder() {
		reader := readerFactories[s]()
		res, err := reader.Decode(bitmap, hints)
		if err != nil {
			if isNoSymbol(err) {
				continue
			}
			return 0, fmt.Errorf("barcode: %s reader: %w", s, err)
		}
		if hit, ok := e.classify(res); ok {
			hits = append(hits, hit)
		}
	}

	if e.cacheOn {
		hits = e.cache.filter(hits)
	}
	e.results = hits
	if len(hits) > 0 {
		slog.Debug("zxing scan", "symbols", len(hits), "area", area.String())
	}
	return len(hits), nil
}

// readerOrder returns the symbologies whose reader must run, in id order.
func (e *ZXingEngine) readerOrder() []symbology.Symbology {
	var order []symbology.Symbology
	if e.enabled[symbology.EAN13] || e.enabled[symbology.ISBN10] || e.enabled[symbology.ISBN13] {
		order = append(order, symbology.EAN13)
	}
	for _, s := range e.Enabled() {
		if s == symbology.EAN13 || s == symbology.ISBN10 || s == symbology.ISBN13 {
			continue
		}
		if _, ok := readerFactories[s]; ok {
			order = append(order, s)
		}
	}
	slices.Sort(order)
	return order
}

// classify converts a gozxing result into a hit, applying the Bookland and
// UPC-A rules for EAN-13 results.
func (e *ZXingEngine) classify(res *gozxing.Result) (Symbol, bool) {
	text := res.GetText()
	format := res.GetBarcodeFormat()
	if format != gozxing.BarcodeFormat_EAN_13 {
		return Symbol{Data: text, Type: formatID(format)}, true
	}

	if e.enabled[symbology.UPCA] && strings.HasPrefix(text, "0") {
		// Left for the UPC-A reader, which reports it without the leading zero.
		return Symbol{}, false
	}
	bookland := strings.HasPrefix(text, "978") || strings.HasPrefix(text, "979")
	switch {
	case bookland && e.enabled[symbology.ISBN10] && strings.HasPrefix(text, "978"):
		return Symbol{Data: isbn10(text), Type: int(symbology.ISBN10)}, true
	case bookland && e.enabled[symbology.ISBN13]:
		return Symbol{Data: text, Type: int(symbology.ISBN13)}, true
	case e.enabled[symbology.EAN13]:
		return Symbol{Data: text, Type: int(symbology.EAN13)}, true
	default:
		return Symbol{}, false
	}
}

// isbn10 converts a 978-prefixed EAN-13 into its ISBN-10 form.
func isbn10(ean string) string {
	body := ean[3:12]
	sum := 0
	for i, r := range body {
		sum += (10 - i) * int(r-'0')
	}
	check := (11 - sum%11) % 11
	if check == 10 {
		return body + "X"
	}
	return body + string(rune('0'+check))
}

// isNoSymbol reports whether err just means nothing was decoded.
func isNoSymbol(err error) bool {
	var re gozxing.ReaderException
	return errors.As(err, &re)
}

// formatID maps a gozxing format onto the engine id space. Formats without a
// counterpart map to 0, which the scanner reports as unknown.
func formatID(f gozxing.BarcodeFormat) int {
	switch f {
	case gozxing.BarcodeFormat_EAN_8:
		return int(symbology.EAN8)
	case gozxing.BarcodeFormat_UPC_E:
		return int(symbology.UPCE)
	case gozxing.BarcodeFormat_UPC_A:
		return int(symbology.UPCA)
	case gozxing.BarcodeFormat_EAN_13:
		return int(symbology.EAN13)
	case gozxing.BarcodeFormat_ITF:
		return int(symbology.I25)
	case gozxing.BarcodeFormat_RSS_14:
		return int(symbology.DataBar)
	case gozxing.BarcodeFormat_RSS_EXPANDED:
		return int(symbology.DataBarExp)
	case gozxing.BarcodeFormat_CODABAR:
		return int(symbology.Codabar)
	case gozxing.BarcodeFormat_CODE_39:
		return int(symbology.Code39)
	case gozxing.BarcodeFormat_PDF_417:
		return int(symbology.PDF417)
	case gozxing.BarcodeFormat_QR_CODE:
		return int(symbology.QRCode)
	case gozxing.BarcodeFormat_CODE_93:
		return int(symbology.Code93)
	case gozxing.BarcodeFormat_CODE_128:
		return int(symbology.Code128)
	default:
		return int(symbology.None)
	}
}
