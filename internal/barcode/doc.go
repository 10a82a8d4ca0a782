// Package barcode defines the decoding engine capability consumed by the
// scanner and ships a pure Go implementation backed by gozxing.
//
// An Engine is configured zbar-style: every symbology is switched on or off
// with SetConfig, scanning density is a scanner-wide parameter, and results
// are retrieved after a successful Scan. Engines are not safe for concurrent
// use; callers serialize configuration changes with scans.
//
// Example:
//
//	eng, _ := barcode.NewEngine("zxing")
//	_ = eng.SetConfig(int(symbology.QRCode), barcode.ConfigEnable, 1)
//	n, err := eng.Scan(f)
package barcode
