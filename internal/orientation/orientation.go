// Package orientation resolves how far a camera sensor image is rotated
// relative to the upright display, and classifies the display itself.
package orientation

import (
	"fmt"
	"strings"
)

// Facing identifies which side of the device a camera sensor looks out of.
// Values match the platform camera metadata (back=0, front=1).
type Facing int

const (
	FacingBack Facing = iota
	FacingFront
)

// String returns the lower-case facing name.
func (f Facing) String() string {
	switch f {
	case FacingBack:
		return "back"
	case FacingFront:
		return "front"
	default:
		return fmt.Sprintf("facing(%d)", int(f))
	}
}

// ParseFacing parses "back" or "front" (case-insensitive).
func ParseFacing(s string) (Facing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "back", "rear", "":
		return FacingBack, nil
	case "front":
		return FacingFront, nil
	default:
		return FacingBack, fmt.Errorf("invalid camera facing: %q (must be back or front)", s)
	}
}

// Rotation is a clockwise angle in degrees, one of {0, 90, 180, 270}.
type Rotation int

const (
	Rotation0   Rotation = 0
	Rotation90  Rotation = 90
	Rotation180 Rotation = 180
	Rotation270 Rotation = 270
)

// Valid reports whether r is one of the four right angles.
func (r Rotation) Valid() bool {
	switch r {
	case Rotation0, Rotation90, Rotation180, Rotation270:
		return true
	default:
		return false
	}
}

// Inverse returns the rotation that undoes r.
func (r Rotation) Inverse() Rotation {
	return Rotation((360 - int(r)%360) % 360)
}

// DisplayOrientation is the coarse portrait/landscape classification of the
// display. Values follow the platform configuration constants.
type DisplayOrientation int

const (
	OrientationUndefined DisplayOrientation = iota
	OrientationPortrait
	OrientationLandscape
)

// String returns the lower-case orientation name.
func (o DisplayOrientation) String() string {
	switch o {
	case OrientationPortrait:
		return "portrait"
	case OrientationLandscape:
		return "landscape"
	default:
		return "undefined"
	}
}

// ParseDisplayOrientation parses "portrait" or "landscape".
func ParseDisplayOrientation(s string) (DisplayOrientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "portrait":
		return OrientationPortrait, nil
	case "landscape":
		return OrientationLandscape, nil
	case "", "undefined":
		return OrientationUndefined, nil
	default:
		return OrientationUndefined, fmt.Errorf("invalid display orientation: %q (must be portrait or landscape)", s)
	}
}

// ClassifyDisplay derives the orientation from window dimensions. A square
// window is reported as portrait.
func ClassifyDisplay(width, height int) DisplayOrientation {
	if width <= 0 || height <= 0 {
		return OrientationUndefined
	}
	if width > height {
		return OrientationLandscape
	}
	return OrientationPortrait
}

// DisplayDegrees maps a display rotation step (0-3) to degrees.
func DisplayDegrees(steps int) int {
	return ((steps%4 + 4) % 4) * 90
}

// EffectiveRotation computes the clockwise rotation that must be undone to
// align display-space rectangles with the sensor frame. mountAngle is the
// sensor mounting angle in [0, 360); displaySteps is the display rotation in
// quarter turns. Front sensors are mirrored, so the display rotation adds to
// the mount angle instead of subtracting from it.
func EffectiveRotation(mountAngle int, facing Facing, displaySteps int) Rotation {
	degrees := DisplayDegrees(displaySteps)
	if facing == FacingFront {
		return Rotation((360 - ((mountAngle + degrees) % 360)) % 360)
	}
	return Rotation(((mountAngle - degrees) + 360) % 360)
}
