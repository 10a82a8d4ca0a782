package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/require"
)

// Placement puts a rendered symbol at an offset inside a scene.
type Placement struct {
	Symbol image.Image
	At     image.Point
}

// QRCode renders text as a QR code of roughly size x size pixels.
func QRCode(t *testing.T, text string, size int) image.Image {
	t.Helper()

	img, err := EncodeQRCode(text, size)
	require.NoError(t, err, "Failed to encode QR code %q", text)
	return img
}

// EncodeQRCode is QRCode for callers without a *testing.T.
func EncodeQRCode(text string, size int) (image.Image, error) {
	m, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, size, size, nil)
	if err != nil {
		return nil, err
	}
	return toGray(m), nil
}

// EAN13 renders a 12 or 13 digit string as an EAN-13 bar code.
func EAN13(t *testing.T, digits string, width, height int) image.Image {
	t.Helper()

	img, err := EncodeEAN13(digits, width, height)
	require.NoError(t, err, "Failed to encode EAN-13 %q", digits)
	return img
}

// EncodeEAN13 is EAN13 for callers without a *testing.T.
func EncodeEAN13(digits string, width, height int) (image.Image, error) {
	m, err := oned.NewEAN13Writer().Encode(digits, gozxing.BarcodeFormat_EAN_13, width, height, nil)
	if err != nil {
		return nil, err
	}
	return toGray(m), nil
}

// Code128 renders text as a Code 128 bar code.
func Code128(t *testing.T, text string, width, height int) image.Image {
	t.Helper()

	img, err := EncodeCode128(text, width, height)
	require.NoError(t, err, "Failed to encode Code 128 %q", text)
	return img
}

// EncodeCode128 is Code128 for callers without a *testing.T.
func EncodeCode128(text string, width, height int) (image.Image, error) {
	m, err := oned.NewCode128Writer().Encode(text, gozxing.BarcodeFormat_CODE_128, width, height, nil)
	if err != nil {
		return nil, err
	}
	return toGray(m), nil
}

// Scene composes symbols onto a white canvas.
func Scene(width, height int, placements ...Placement) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)
	for _, p := range placements {
		b := p.Symbol.Bounds()
		dst := image.Rectangle{Min: p.At, Max: p.At.Add(b.Size())}
		draw.Draw(img, dst, p.Symbol, b.Min, draw.Src)
	}
	return img
}

// SaveImage saves an image as PNG to the specified path.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()
	require.NoError(t, SavePNG(img, path), "Failed to save PNG image %s", path)
}

// SavePNG writes img as PNG, creating parent directories as needed.
func SavePNG(img image.Image, path string) (err error) {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	return png.Encode(file, img)
}

func toGray(m *gozxing.BitMatrix) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.GetWidth(), m.GetHeight()))
	for y := 0; y < m.GetHeight(); y++ {
		for x := 0; x < m.GetWidth(); x++ {
			if m.Get(x, y) {
				img.SetGray(x, y, color.Gray{Y: 0})
			} else {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}
