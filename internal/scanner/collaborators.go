package scanner

import (
	"image"

	"github.com/MeKo-Tech/scanroi/internal/orientation"
)

// CameraInfo is the sensor metadata of the camera delivering frames.
type CameraInfo struct {
	Facing orientation.Facing
	// MountAngle is the clockwise angle the sensor image must be rotated to
	// appear upright on a display in its natural orientation.
	MountAngle int
}

// Camera is the capture session handle passed with every frame.
type Camera interface {
	// PreviewSize is the frame size in sensor pixels.
	PreviewSize() (width, height int)
	Info() CameraInfo
}

// Display reports how the device screen is currently turned.
type Display interface {
	// RotationSteps is the display rotation in quarter turns (0-3).
	RotationSteps() int
	Orientation() orientation.DisplayOrientation
}

// View is an on-screen view with a size and a position in global screen
// coordinates.
type View interface {
	Size() (width, height int)
	GlobalVisibleRect() image.Rectangle
}

// StaticCamera is a Camera with fixed geometry.
type StaticCamera struct {
	Width, Height int
	CameraInfo
}

// PreviewSize implements Camera.
func (c StaticCamera) PreviewSize() (int, int) { return c.Width, c.Height }

// Info implements Camera.
func (c StaticCamera) Info() CameraInfo { return c.CameraInfo }

// StaticDisplay is a Display with a fixed rotation and orientation.
type StaticDisplay struct {
	Steps  int
	Layout orientation.DisplayOrientation
}

// RotationSteps implements Display.
func (d *StaticDisplay) RotationSteps() int { return d.Steps }

// Orientation implements Display.
func (d *StaticDisplay) Orientation() orientation.DisplayOrientation { return d.Layout }

// StaticView is a View with a fixed global rectangle.
type StaticView struct {
	Rect image.Rectangle
}

// Size implements View.
func (v *StaticView) Size() (int, int) { return v.Rect.Dx(), v.Rect.Dy() }

// GlobalVisibleRect implements View.
func (v *StaticView) GlobalVisibleRect() image.Rectangle { return v.Rect }
