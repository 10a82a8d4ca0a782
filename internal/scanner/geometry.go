package scanner

import (
	"fmt"
	"image"

	"github.com/MeKo-Tech/scanroi/internal/barcode"
	"github.com/MeKo-Tech/scanroi/internal/orientation"
)

// Geometry describes a device whose collaborators are fixed: the camera
// preview, how its sensor is mounted, how the display is turned and the size
// of the scanner view. The CLI and the HTTP service use it to stand in for a
// live device.
type Geometry struct {
	PreviewWidth  int
	PreviewHeight int
	Facing        orientation.Facing
	MountAngle    int
	// DisplaySteps is the display rotation in quarter turns.
	DisplaySteps int
	Display      orientation.DisplayOrientation
	ViewWidth    int
	ViewHeight   int
}

// Validate checks the geometry for values no real device reports.
func (g Geometry) Validate() error {
	if g.PreviewWidth <= 0 || g.PreviewHeight <= 0 {
		return fmt.Errorf("scanner: invalid preview size %dx%d", g.PreviewWidth, g.PreviewHeight)
	}
	if g.ViewWidth <= 0 || g.ViewHeight <= 0 {
		return fmt.Errorf("scanner: invalid view size %dx%d", g.ViewWidth, g.ViewHeight)
	}
	if !orientation.Rotation(g.MountAngle).Valid() {
		return fmt.Errorf("scanner: invalid mount angle %d", g.MountAngle)
	}
	if g.DisplaySteps < 0 || g.DisplaySteps > 3 {
		return fmt.Errorf("scanner: invalid display rotation %d", g.DisplaySteps)
	}
	return nil
}

// Rotation is the effective rotation between sensor frames and the display.
func (g Geometry) Rotation() orientation.Rotation {
	return orientation.EffectiveRotation(g.MountAngle, g.Facing, g.DisplaySteps)
}

// Camera returns a camera delivering frames of the preview size.
func (g Geometry) Camera() StaticCamera {
	return StaticCamera{
		Width:      g.PreviewWidth,
		Height:     g.PreviewHeight,
		CameraInfo: CameraInfo{Facing: g.Facing, MountAngle: g.MountAngle},
	}
}

// NewDisplay returns the display described by g.
func (g Geometry) NewDisplay() *StaticDisplay {
	return &StaticDisplay{Steps: g.DisplaySteps, Layout: g.Display}
}

// NewView returns a scanner view of the configured size at the screen origin.
func (g Geometry) NewView() *StaticView {
	return &StaticView{Rect: image.Rect(0, 0, g.ViewWidth, g.ViewHeight)}
}

// NewStatic returns a Scanner wired to the fixed collaborators of g.
func NewStatic(engine barcode.Engine, g Geometry) (*Scanner, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return New(engine, StrongView(g.NewView()), StrongDisplay(g.NewDisplay()))
}
