package scanner

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/scanroi/internal/barcode"
	"github.com/MeKo-Tech/scanroi/internal/frame"
	"github.com/MeKo-Tech/scanroi/internal/orientation"
	"github.com/MeKo-Tech/scanroi/internal/region"
	"github.com/MeKo-Tech/scanroi/internal/symbology"
)

// Scanner decodes camera frames restricted to a scan rectangle drawn in the
// scanner view.
type Scanner struct {
	session    *Session
	view       Ref[View]
	display    Ref[Display]
	decodeRect *image.Rectangle
}

// New returns a Scanner with every symbology enabled and no scan rectangle.
// view is the scanner view the camera preview is shown in and display is the
// screen it lives on; both are only consulted once a scan rectangle is set.
func New(engine barcode.Engine, view Ref[View], display Ref[Display]) (*Scanner, error) {
	session, err := NewSession(engine)
	if err != nil {
		return nil, err
	}
	return &Scanner{session: session, view: view, display: display}, nil
}

// Session exposes the underlying decode session.
func (s *Scanner) Session() *Session { return s.session }

// SetSymbology replaces the enabled symbologies.
func (s *Scanner) SetSymbology(list []symbology.Symbology) error {
	return s.session.Configure(list)
}

// EnableCache toggles de-duplication of symbols across frames.
func (s *Scanner) EnableCache(enable bool) {
	s.session.SetCacheEnabled(enable)
}

// SetDecodeRect sets the scan rectangle in scanner-view pixels.
func (s *Scanner) SetDecodeRect(r image.Rectangle) {
	s.decodeRect = &r
}

// ClearDecodeRect removes the scan rectangle so whole frames are scanned.
func (s *Scanner) ClearDecodeRect() {
	s.decodeRect = nil
}

// DecodeRect returns the scan rectangle, if one is set.
func (s *Scanner) DecodeRect() (image.Rectangle, bool) {
	if s.decodeRect == nil {
		return image.Rectangle{}, false
	}
	return *s.decodeRect, true
}

// SetDecodeRectFromView uses the visible bounds of target, typically a
// viewfinder overlay, as the scan rectangle.
func (s *Scanner) SetDecodeRectFromView(target View) error {
	if target == nil {
		return errors.New("scanner: nil target view")
	}
	scannerView, ok := s.viewRef()
	if !ok {
		return ErrViewGone
	}
	s.SetDecodeRect(region.RelativeTo(target.GlobalVisibleRect(), scannerView.GlobalVisibleRect()))
	return nil
}

// CropRect maps the scan rectangle onto frames delivered by cam. The boolean
// is false when no scan rectangle is set or when it maps to an empty crop;
// either way the whole frame is scanned. The mapped rectangle is returned in
// both cases where one exists.
func (s *Scanner) CropRect(cam Camera) (image.Rectangle, bool, error) {
	if cam == nil {
		return image.Rectangle{}, false, ErrNoCamera
	}
	if s.decodeRect == nil {
		return image.Rectangle{}, false, nil
	}
	view, ok := s.viewRef()
	if !ok {
		return image.Rectangle{}, false, ErrViewGone
	}
	display, ok := s.displayRef()
	if !ok {
		return image.Rectangle{}, false, ErrContextGone
	}

	info := cam.Info()
	viewWidth, viewHeight := view.Size()
	m := region.Mapper{
		ViewWidth:  viewWidth,
		ViewHeight: viewHeight,
		Display:    display.Orientation(),
		Rotation:   orientation.EffectiveRotation(info.MountAngle, info.Facing, display.RotationSteps()),
	}
	previewWidth, previewHeight := cam.PreviewSize()
	crop, err := m.Map(*s.decodeRect, previewWidth, previewHeight)
	if err != nil {
		return image.Rectangle{}, false, fmt.Errorf("scanner: map scan rectangle: %w", err)
	}
	return crop, !crop.Empty(), nil
}

// Decode decodes one camera frame. data holds at least the Y800 luma plane of
// a frame of cam's preview size.
func (s *Scanner) Decode(data []byte, cam Camera) ([]Result, error) {
	if cam == nil {
		return nil, ErrNoCamera
	}
	width, height := cam.PreviewSize()
	f, err := frame.New(data, width, height)
	if err != nil {
		return nil, fmt.Errorf("scanner: %w", err)
	}
	crop, ok, err := s.CropRect(cam)
	if err != nil {
		return nil, err
	}
	if ok {
		f.SetCrop(crop)
		slog.Debug("Applying scan rectangle", "crop", crop.String())
	}
	return s.session.Decode(f)
}

func (s *Scanner) viewRef() (View, bool) {
	if s.view == nil {
		return nil, false
	}
	return s.view.Get()
}

func (s *Scanner) displayRef() (Display, bool) {
	if s.display == nil {
		return nil, false
	}
	return s.display.Get()
}
