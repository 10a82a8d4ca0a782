package server

import (
	"bytes"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/scanroi/internal/barcode"
	"github.com/MeKo-Tech/scanroi/internal/barcode/barcodetest"
	"github.com/MeKo-Tech/scanroi/internal/orientation"
	"github.com/MeKo-Tech/scanroi/internal/scanner"
	"github.com/MeKo-Tech/scanroi/internal/testutil"
	"github.com/stretchr/testify/require"
)

// phoneGeometry is a 1080x1920 portrait screen with a back camera mounted at
// 90 degrees delivering 640x480 frames.
func phoneGeometry() scanner.Geometry {
	return scanner.Geometry{
		PreviewWidth:  640,
		PreviewHeight: 480,
		Facing:        orientation.FacingBack,
		MountAngle:    90,
		Display:       orientation.OrientationPortrait,
		ViewWidth:     1080,
		ViewHeight:    1920,
	}
}

func testConfig() Config {
	return Config{
		Host:        "localhost",
		Port:        8080,
		CORSOrigin:  "*",
		MaxUploadMB: 5,
		TimeoutSec:  30,
		Geometry:    phoneGeometry(),
	}
}

// newZXingServer returns a server backed by the real decoding engine.
func newZXingServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s
}

// newScriptedServer returns a server whose engines report hits. Every engine
// created is appended to the returned slice.
func newScriptedServer(t *testing.T, cfg Config, hits ...barcodetest.Hit) (*Server, *[]*barcodetest.Engine) {
	t.Helper()
	var engines []*barcodetest.Engine
	s, err := newServer(cfg, func(string) (barcode.Engine, error) {
		e := barcodetest.New(hits...)
		engines = append(engines, e)
		return e, nil
	})
	require.NoError(t, err)
	return s, &engines
}

// uprightScene is a 480x640 portrait photo with one QR code in the top half
// ("inside") and one in the bottom half ("outside").
func uprightScene(t *testing.T) image.Image {
	t.Helper()
	return testutil.Scene(480, 640,
		testutil.Placement{Symbol: testutil.QRCode(t, "inside", 200), At: image.Pt(140, 100)},
		testutil.Placement{Symbol: testutil.QRCode(t, "outside", 200), At: image.Pt(140, 410)},
	)
}

// encodeImageToPNG encodes an image to PNG bytes.
func encodeImageToPNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// createMultipartFormRequest creates a multipart form request for /scan/frame.
// A nil imageData omits the file part.
func createMultipartFormRequest(t *testing.T, imageData []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if imageData != nil {
		part, err := writer.CreateFormFile("image", "frame.png")
		require.NoError(t, err)
		_, err = part.Write(imageData)
		require.NoError(t, err)
	}
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/scan/frame", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
