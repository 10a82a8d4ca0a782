package barcode

import (
	"image"
	"testing"

	"github.com/MeKo-Tech/scanroi/internal/frame"
	"github.com/MeKo-Tech/scanroi/internal/symbology"
	"github.com/MeKo-Tech/scanroi/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, enabled ...symbology.Symbology) *ZXingEngine {
	t.Helper()
	e, err := NewZXingEngine()
	require.NoError(t, err)
	for _, s := range enabled {
		require.NoError(t, e.SetConfig(s.ID(), ConfigEnable, 1))
	}
	return e
}

func sceneFrame(t *testing.T, img image.Image) *frame.Frame {
	t.Helper()
	f, err := frame.FromImage(img)
	require.NoError(t, err)
	t.Cleanup(f.Release)
	return f
}

func TestZXingEngine_StartsDisabled(t *testing.T) {
	e := newTestEngine(t)
	assert.Empty(t, e.Enabled())
	x, y := e.Density()
	assert.Equal(t, 1, x)
	assert.Equal(t, 1, y)

	f := sceneFrame(t, testutil.Scene(320, 320, testutil.Placement{Symbol: testutil.QRCode(t, "hi", 200), At: image.Pt(60, 60)}))
	n, err := e.Scan(f)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, e.Results())
}

func TestZXingEngine_SetConfig(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.SetConfig(0, ConfigEnable, 1))
	assert.Equal(t, symbology.All(), e.Enabled())

	require.NoError(t, e.SetConfig(0, ConfigEnable, 0))
	require.NoError(t, e.SetConfig(64, ConfigEnable, 1))
	require.NoError(t, e.SetConfig(13, ConfigEnable, 1))
	assert.Equal(t, []symbology.Symbology{symbology.EAN13, symbology.QRCode}, e.Enabled())

	require.NoError(t, e.SetConfig(0, ConfigXDensity, 3))
	require.NoError(t, e.SetConfig(0, ConfigYDensity, 2))
	x, y := e.Density()
	assert.Equal(t, 3, x)
	assert.Equal(t, 2, y)

	err := e.SetConfig(0, Config(0x42), 1)
	require.ErrorIs(t, err, ErrUnsupportedConfig)

	err = e.SetConfig(777, ConfigEnable, 1)
	require.Error(t, err)

	err = e.SetConfig(0, ConfigXDensity, -1)
	require.Error(t, err)
}

func TestZXingEngine_ScanRejectsBadFrames(t *testing.T) {
	e := newTestEngine(t, symbology.QRCode)

	_, err := e.Scan(nil)
	require.ErrorIs(t, err, ErrNilFrame)

	_, err = e.Scan(&frame.Frame{Width: 2, Height: 2, Format: "NV21", Data: make([]byte, 6)})
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestZXingEngine_DecodesQRCode(t *testing.T) {
	e := newTestEngine(t, symbology.QRCode)
	f := sceneFrame(t, testutil.Scene(480, 360, testutil.Placement{Symbol: testutil.QRCode(t, "scan me", 200), At: image.Pt(140, 80)}))

	n, err := e.Scan(f)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, []Symbol{{Data: "scan me", Type: int(symbology.QRCode)}}, e.Results())
}

func TestZXingEngine_HonoursCrop(t *testing.T) {
	e := newTestEngine(t, symbology.QRCode)
	img := testutil.Scene(640, 320,
		testutil.Placement{Symbol: testutil.QRCode(t, "left", 200), At: image.Pt(40, 60)},
		testutil.Placement{Symbol: testutil.QRCode(t, "right", 200), At: image.Pt(400, 60)},
	)

	tests := []struct {
		name string
		crop image.Rectangle
		want []Symbol
	}{
		{"left half", image.Rect(0, 0, 320, 320), []Symbol{{Data: "left", Type: 64}}},
		{"right half", image.Rect(320, 0, 640, 320), []Symbol{{Data: "right", Type: 64}}},
		{"between codes", image.Rect(250, 0, 390, 320), nil},
		{"empty crop", image.Rectangle{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := sceneFrame(t, img)
			f.SetCrop(tt.crop)

			n, err := e.Scan(f)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), n)
			assert.Equal(t, tt.want, e.Results())
		})
	}
}

func TestZXingEngine_Bookland(t *testing.T) {
	img := testutil.Scene(400, 200, testutil.Placement{Symbol: testutil.EAN13(t, "9780306406157", 300, 120), At: image.Pt(40, 40)})

	tests := []struct {
		name    string
		enabled []symbology.Symbology
		want    []Symbol
	}{
		{"plain ean13", []symbology.Symbology{symbology.EAN13}, []Symbol{{Data: "9780306406157", Type: 13}}},
		{"isbn13", []symbology.Symbology{symbology.EAN13, symbology.ISBN13}, []Symbol{{Data: "9780306406157", Type: 14}}},
		{"isbn10 wins", []symbology.Symbology{symbology.ISBN10, symbology.ISBN13}, []Symbol{{Data: "0306406152", Type: 10}}},
		{"qr only", []symbology.Symbology{symbology.QRCode}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, tt.enabled...)
			n, err := e.Scan(sceneFrame(t, img))
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), n)
			assert.Equal(t, tt.want, e.Results())
		})
	}
}

func TestZXingEngine_UPCALeadingZero(t *testing.T) {
	img := testutil.Scene(400, 200, testutil.Placement{Symbol: testutil.EAN13(t, "0012345678905", 300, 120), At: image.Pt(40, 40)})

	e := newTestEngine(t, symbology.EAN13)
	_, err := e.Scan(sceneFrame(t, img))
	require.NoError(t, err)
	assert.Equal(t, []Symbol{{Data: "0012345678905", Type: 13}}, e.Results())

	e = newTestEngine(t, symbology.EAN13, symbology.UPCA)
	_, err = e.Scan(sceneFrame(t, img))
	require.NoError(t, err)
	assert.Equal(t, []Symbol{{Data: "012345678905", Type: 12}}, e.Results())
}

func TestZXingEngine_Cache(t *testing.T) {
	img := testutil.Scene(320, 320, testutil.Placement{Symbol: testutil.QRCode(t, "cached", 200), At: image.Pt(60, 60)})

	e := newTestEngine(t, symbology.QRCode)
	e.EnableCache(true)

	n, err := e.Scan(sceneFrame(t, img))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = e.Scan(sceneFrame(t, img))
	require.NoError(t, err)
	assert.Zero(t, n, "symbol still in view is suppressed")

	e.EnableCache(false)
	n, err = e.Scan(sceneFrame(t, img))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestZXingEngine_ZeroDensityScansNothing(t *testing.T) {
	e := newTestEngine(t, symbology.QRCode)
	require.NoError(t, e.SetConfig(0, ConfigXDensity, 0))
	require.NoError(t, e.SetConfig(0, ConfigYDensity, 0))

	img := testutil.Scene(320, 320, testutil.Placement{Symbol: testutil.QRCode(t, "hi", 200), At: image.Pt(60, 60)})
	n, err := e.Scan(sceneFrame(t, img))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestISBN10(t *testing.T) {
	tests := map[string]string{
		"9780306406157": "0306406152",
		"9780843610727": "0843610727",
		"9780804310055": "080431005X",
		"9781861972712": "1861972717",
	}
	for ean, want := range tests {
		assert.Equal(t, want, isbn10(ean), ean)
	}
}

func TestFormatIDUnknown(t *testing.T) {
	assert.Equal(t, int(symbology.None), formatID(-1))
}
