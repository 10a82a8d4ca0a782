// Package scanner ties the region mapping to a decoding engine.
//
// A Session owns the engine configuration and turns raw engine hits into
// Results. A Scanner adds the platform-facing surface on top: it remembers
// the scan rectangle drawn in the scanner view, maps it onto every camera
// frame and hands the cropped frame to its Session.
//
// Neither type is safe for concurrent use. Callers deliver one frame at a time
// and serialize configuration changes with Decode.
package scanner
