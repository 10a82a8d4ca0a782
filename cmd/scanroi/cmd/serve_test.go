package cmd

import (
	"testing"
	"time"

	"github.com/MeKo-Tech/scanroi/internal/config"
	"github.com/MeKo-Tech/scanroi/internal/orientation"
	"github.com/MeKo-Tech/scanroi/internal/server"
	"github.com/MeKo-Tech/scanroi/internal/symbology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseServeFlags(t *testing.T, args ...string) {
	t.Helper()
	resetCommandState(rootCmd)
	require.NoError(t, serveCmd.ParseFlags(args))
}

func TestBuildServerConfigDefaults(t *testing.T) {
	parseServeFlags(t)
	cfg := config.DefaultConfig()

	sc, shutdown, err := buildServerConfig(serveCmd, &cfg)
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", sc.Addr())
	assert.Equal(t, "*", sc.CORSOrigin)
	assert.Equal(t, int64(20), sc.MaxUploadMB)
	assert.Equal(t, 30, sc.TimeoutSec)
	assert.Equal(t, 10*time.Second, shutdown)
	assert.Equal(t, "zxing", sc.Engine)
	assert.Equal(t, symbology.All(), sc.Symbologies)
	assert.Nil(t, sc.RateLimit)

	assert.Equal(t, 90, sc.Geometry.MountAngle)
	assert.Equal(t, orientation.OrientationPortrait, sc.Geometry.Display)
	assert.Equal(t, 640, sc.Geometry.PreviewWidth)
}

func TestBuildServerConfigFlagOverrides(t *testing.T) {
	parseServeFlags(t, "--host", "0.0.0.0", "--port", "9000", "--cors-origin", "https://example.com",
		"--max-upload-size", "5", "--timeout", "12", "--shutdown-timeout", "3",
		"--rate-limit-enabled", "--requests-per-minute", "7", "--max-data-per-day", "2")
	cfg := config.DefaultConfig()
	cfg.Scanner.Symbologies = []string{"qr"}
	cfg.Scanner.CacheEnabled = true

	sc, shutdown, err := buildServerConfig(serveCmd, &cfg)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", sc.Addr())
	assert.Equal(t, "https://example.com", sc.CORSOrigin)
	assert.Equal(t, int64(5), sc.MaxUploadMB)
	assert.Equal(t, 12, sc.TimeoutSec)
	assert.Equal(t, 3*time.Second, shutdown)
	assert.Equal(t, []symbology.Symbology{symbology.QRCode}, sc.Symbologies)
	assert.True(t, sc.CacheEnabled)

	require.NotNil(t, sc.RateLimit)
	assert.Equal(t, server.Limits{
		RequestsPerMinute: 7,
		RequestsPerHour:   10000,
		BytesPerDay:       2 * 1024 * 1024,
	}, *sc.RateLimit)

	_, err = server.NewServer(sc)
	require.NoError(t, err)
}

func TestBuildServerConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"bad port", []string{"--port", "70000"}, nil, "invalid port number"},
		{"bad timeout", []string{"--timeout", "0"}, nil, "invalid timeout"},
		{"bad geometry", nil, func(c *config.Config) { c.Camera.MountAngle = 45 }, "mount"},
		{"bad symbology", nil, func(c *config.Config) { c.Scanner.Symbologies = []string{"nope"} }, "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parseServeFlags(t, tt.args...)
			cfg := config.DefaultConfig()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			_, _, err := buildServerConfig(serveCmd, &cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
