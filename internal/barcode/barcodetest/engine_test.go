package barcodetest

import (
	"errors"
	"image"
	"testing"

	"github.com/MeKo-Tech/scanroi/internal/barcode"
	"github.com/MeKo-Tech/scanroi/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ barcode.Engine = (*Engine)(nil)

func TestEngine_FiltersByEnabledAndArea(t *testing.T) {
	e := New(
		Hit{Symbol: barcode.Symbol{Data: "qr", Type: 64}, Area: image.Rect(0, 0, 10, 10)},
		Hit{Symbol: barcode.Symbol{Data: "ean", Type: 13}},
	)
	f, err := frame.New(make([]byte, 100*100), 100, 100)
	require.NoError(t, err)

	n, err := e.Scan(f)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, e.SetConfig(0, barcode.ConfigEnable, 1))
	n, err = e.Scan(f)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f.SetCrop(image.Rect(50, 50, 100, 100))
	n, err = e.Scan(f)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []barcode.Symbol{{Data: "ean", Type: 13}}, e.Results())

	require.NoError(t, e.SetConfig(13, barcode.ConfigEnable, 0))
	assert.False(t, e.Enabled(13))
	assert.True(t, e.Enabled(64))
	assert.Len(t, e.Calls, 2)
	assert.Len(t, e.Scanned, 3)
}

func TestEngine_ScriptedErrors(t *testing.T) {
	boom := errors.New("boom")
	e := New()
	e.ScanErr = boom
	e.ConfigErr = boom

	_, err := e.Scan(&frame.Frame{})
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, e.SetConfig(0, barcode.ConfigEnable, 1), boom)
}
