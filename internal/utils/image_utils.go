package utils

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/MeKo-Tech/scanroi/internal/orientation"
	"github.com/disintegration/imaging"
)

// SensorImage lays out an upright scene the way a sensor with the given
// effective rotation delivers it: the scene is turned counter-clockwise by
// rotation degrees, so rotating the result clockwise by the same amount makes
// it upright again.
func SensorImage(upright image.Image, rotation orientation.Rotation) (image.Image, error) {
	if upright == nil {
		return nil, &ImageProcessingError{Operation: "sensor layout", Err: errors.New("input image is nil")}
	}
	switch rotation {
	case orientation.Rotation0:
		return imaging.Clone(upright), nil
	case orientation.Rotation90:
		return imaging.Rotate90(upright), nil
	case orientation.Rotation180:
		return imaging.Rotate180(upright), nil
	case orientation.Rotation270:
		return imaging.Rotate270(upright), nil
	default:
		return nil, &ImageProcessingError{Operation: "sensor layout", Err: fmt.Errorf("unsupported rotation %d", rotation)}
	}
}

// UprightImage undoes SensorImage.
func UprightImage(sensor image.Image, rotation orientation.Rotation) (image.Image, error) {
	if !rotation.Valid() {
		return nil, &ImageProcessingError{Operation: "upright layout", Err: fmt.Errorf("unsupported rotation %d", rotation)}
	}
	return SensorImage(sensor, rotation.Inverse())
}

// CropImageRect crops an image to the given rectangle.
func CropImageRect(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return imaging.New(0, 0, color.Transparent)
	}
	return imaging.Crop(img, rect)
}

// DrawRect draws an axis-aligned rectangle outline into dst.
func DrawRect(dst *image.NRGBA, rect image.Rectangle, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	rect = rect.Canon().Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	// Top and bottom edges
	for t := range thickness {
		yTop := rect.Min.Y + t
		yBot := rect.Max.Y - 1 - t
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dst.Set(x, yTop, col)
			dst.Set(x, yBot, col)
		}
	}
	// Left and right edges
	for t := range thickness {
		xLeft := rect.Min.X + t
		xRight := rect.Max.X - 1 - t
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			dst.Set(xLeft, y, col)
			dst.Set(xRight, y, col)
		}
	}
}

// Annotate returns a color copy of img with rect outlined in red.
func Annotate(img image.Image, rect image.Rectangle) *image.NRGBA {
	out := imaging.Clone(img)
	DrawRect(out, rect, color.NRGBA{R: 255, A: 255}, 3)
	return out
}
