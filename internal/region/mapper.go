package region

import (
	"image"

	"github.com/MeKo-Tech/scanroi/internal/orientation"
)

// Mapper carries the view and orientation state needed to turn a scan
// rectangle in view pixels into a crop rectangle in sensor pixels.
type Mapper struct {
	ViewWidth  int
	ViewHeight int
	Display    orientation.DisplayOrientation
	Rotation   orientation.Rotation
}

// Map scales ui into preview space and rotates it into the sensor layout of a
// previewWidth x previewHeight frame.
func (m Mapper) Map(ui image.Rectangle, previewWidth, previewHeight int) (image.Rectangle, error) {
	scaled, err := Scale(ui, m.ViewWidth, m.ViewHeight, previewWidth, previewHeight, m.Display)
	if err != nil {
		return image.Rectangle{}, err
	}
	return Rotate(scaled, previewWidth, previewHeight, m.Rotation)
}
