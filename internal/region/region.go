// Package region maps a scan rectangle drawn in scanner-view pixels onto the
// sensor frame that the camera delivers.
//
// The mapping happens in two steps. Scale converts view pixels into preview
// pixels laid out the way the display shows them, and Rotate turns that
// rectangle into the sensor's native layout. Both steps work on
// image.Rectangle with Min as (left, top) and Max as (right, bottom); the
// coordinate space a rectangle lives in is tracked by the caller.
package region

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/scanroi/internal/orientation"
)

var (
	// ErrInvalidView is returned when the scanner view has no area to scale from.
	ErrInvalidView = errors.New("region: scanner view has zero or negative size")

	// ErrInvalidRotation is returned for rotations other than 0, 90, 180 or 270.
	ErrInvalidRotation = errors.New("region: rotation must be 0, 90, 180 or 270")
)

// rect builds a rectangle from edges without canonicalising them, so edge
// arithmetic is preserved exactly.
func rect(left, top, right, bottom int) image.Rectangle {
	return image.Rectangle{Min: image.Pt(left, top), Max: image.Pt(right, bottom)}
}

// PreviewBasis returns the preview dimensions as seen by the display. The
// sensor usually reports a landscape size; on a portrait display the width and
// height are swapped so that both sides are measured along the same axes.
func PreviewBasis(previewWidth, previewHeight int, display orientation.DisplayOrientation) (int, int) {
	switch {
	case display == orientation.OrientationPortrait && previewHeight < previewWidth:
		return previewHeight, previewWidth
	case display == orientation.OrientationLandscape && previewHeight > previewWidth:
		return previewHeight, previewWidth
	default:
		return previewWidth, previewHeight
	}
}

// Scale maps ui, expressed in scanner-view pixels, into preview pixels.
// Every edge is scaled independently with truncating integer division.
func Scale(ui image.Rectangle, viewWidth, viewHeight, previewWidth, previewHeight int,
	display orientation.DisplayOrientation,
) (image.Rectangle, error) {
	if viewWidth <= 0 || viewHeight <= 0 {
		return image.Rectangle{}, fmt.Errorf("%w: %dx%d", ErrInvalidView, viewWidth, viewHeight)
	}
	width, height := PreviewBasis(previewWidth, previewHeight, display)
	return rect(
		ui.Min.X*width/viewWidth,
		ui.Min.Y*height/viewHeight,
		ui.Max.X*width/viewWidth,
		ui.Max.Y*height/viewHeight,
	), nil
}

// Rotate turns a rectangle from display layout into sensor layout. rotation is
// the clockwise angle the sensor image needs to appear upright; the rectangle
// is turned counter-clockwise by the same amount. previewWidth and
// previewHeight are the sensor frame dimensions.
func Rotate(r image.Rectangle, previewWidth, previewHeight int, rotation orientation.Rotation) (image.Rectangle, error) {
	switch rotation {
	case orientation.Rotation0:
		return r, nil
	case orientation.Rotation90:
		return rect(r.Min.Y, previewHeight-r.Max.X, r.Max.Y, previewHeight-r.Min.X), nil
	case orientation.Rotation180:
		return rect(previewWidth-r.Max.X, previewHeight-r.Max.Y, previewWidth-r.Min.X, previewHeight-r.Min.Y), nil
	case orientation.Rotation270:
		return rect(previewWidth-r.Max.Y, r.Min.X, previewWidth-r.Min.Y, r.Max.X), nil
	default:
		return image.Rectangle{}, fmt.Errorf("%w: got %d", ErrInvalidRotation, int(rotation))
	}
}

// Unrotate is the inverse of Rotate: it maps a sensor-layout rectangle back
// into display layout, so Rotate(Unrotate(r)) == r for every right angle.
func Unrotate(r image.Rectangle, previewWidth, previewHeight int, rotation orientation.Rotation) (image.Rectangle, error) {
	switch rotation {
	case orientation.Rotation0:
		return r, nil
	case orientation.Rotation90:
		return rect(previewHeight-r.Max.Y, r.Min.X, previewHeight-r.Min.Y, r.Max.X), nil
	case orientation.Rotation180:
		return rect(previewWidth-r.Max.X, previewHeight-r.Max.Y, previewWidth-r.Min.X, previewHeight-r.Min.Y), nil
	case orientation.Rotation270:
		return rect(r.Min.Y, previewWidth-r.Max.X, r.Max.Y, previewWidth-r.Min.X), nil
	default:
		return image.Rectangle{}, fmt.Errorf("%w: got %d", ErrInvalidRotation, int(rotation))
	}
}

// RelativeTo expresses target, a rectangle in global screen coordinates, in
// the coordinate space of a scanner view whose global rectangle is scanner.
// Only the vertical offset is removed: the scanner view is assumed to span
// the full screen width.
func RelativeTo(target, scanner image.Rectangle) image.Rectangle {
	return rect(target.Min.X, target.Min.Y-scanner.Min.Y, target.Max.X, target.Max.Y-scanner.Min.Y)
}
