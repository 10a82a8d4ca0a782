// Package frame describes one camera preview exposure as handed to a decoder:
// a single-channel luma plane plus an optional crop rectangle in sensor pixels.
package frame

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/scanroi/internal/mempool"
	"github.com/disintegration/imaging"
)

// FormatY800 is the fourcc of an 8-bit single-channel luma plane.
const FormatY800 = "Y800"

var (
	// ErrInvalidSize is returned for frames without positive dimensions.
	ErrInvalidSize = errors.New("frame: width and height must be positive")

	// ErrShortBuffer is returned when the luma plane holds fewer than width*height bytes.
	ErrShortBuffer = errors.New("frame: data shorter than width*height")
)

// Frame is a luma image in sensor layout. It is owned by a single decode call.
type Frame struct {
	Width  int
	Height int
	Format string
	Data   []byte
	// Crop restricts decoding to a sub-rectangle in sensor pixels. Nil means
	// the whole frame is scanned.
	Crop *image.Rectangle

	pooled bool
}

// New wraps a raw Y800 plane. Camera NV21 buffers can be passed directly,
// since their first width*height bytes are the luma plane.
func New(data []byte, width, height int) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if len(data) < width*height {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrShortBuffer, len(data), width*height)
	}
	return &Frame{Width: width, Height: height, Format: FormatY800, Data: data}, nil
}

// FromImage converts img to a Y800 frame. The plane comes from a shared pool;
// call Release once the frame is no longer needed.
func FromImage(img image.Image) (*Frame, error) {
	if img == nil {
		return nil, errors.New("frame: nil image")
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)
	}

	data := mempool.GetBytes(w * h)
	if g, ok := img.(*image.Gray); ok {
		for y := range h {
			row := g.Pix[(y+b.Min.Y-g.Rect.Min.Y)*g.Stride+(b.Min.X-g.Rect.Min.X):]
			copy(data[y*w:(y+1)*w], row[:w])
		}
	} else {
		gray := imaging.Grayscale(img)
		for y := range h {
			src := gray.Pix[y*gray.Stride:]
			dst := data[y*w : (y+1)*w]
			for x := range w {
				dst[x] = src[x*4]
			}
		}
	}
	return &Frame{Width: w, Height: h, Format: FormatY800, Data: data, pooled: true}, nil
}

// Release hands a pooled plane back. The frame must not be used afterwards.
func (f *Frame) Release() {
	if f == nil || !f.pooled {
		return
	}
	mempool.PutBytes(f.Data)
	f.Data = nil
	f.pooled = false
}

// Bounds returns the full frame rectangle.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// SetCrop restricts decoding to r.
func (f *Frame) SetCrop(r image.Rectangle) {
	f.Crop = &r
}

// ScanArea is the region a decoder should look at: the crop clipped to the
// frame, or the whole frame when no crop is set. An empty crop yields an
// empty area, meaning nothing is scanned.
func (f *Frame) ScanArea() image.Rectangle {
	if f.Crop == nil {
		return f.Bounds()
	}
	area := f.Crop.Canon().Intersect(f.Bounds())
	if area.Empty() {
		return image.Rectangle{}
	}
	return area
}

// Gray returns a copy of the scan area as an image, mostly for debugging and
// for engines that consume image.Image.
func (f *Frame) Gray() *image.Gray {
	area := f.ScanArea()
	out := image.NewGray(image.Rect(0, 0, area.Dx(), area.Dy()))
	for y := range area.Dy() {
		start := (area.Min.Y+y)*f.Width + area.Min.X
		copy(out.Pix[y*out.Stride:], f.Data[start:start+area.Dx()])
	}
	return out
}
