package scanner

import "errors"

var (
	// ErrEngine marks failures reported by the decoding engine itself. The
	// session configuration stays valid and later calls may succeed.
	ErrEngine = errors.New("scanner: decoding engine failure")

	// ErrViewGone is returned when the scanner view has been torn down.
	ErrViewGone = errors.New("scanner: scanner view is no longer available")

	// ErrContextGone is returned when the display context has been torn down.
	ErrContextGone = errors.New("scanner: display context is no longer available")

	// ErrNoCamera is returned when Decode is called without a camera handle.
	ErrNoCamera = errors.New("scanner: no camera handle")
)
