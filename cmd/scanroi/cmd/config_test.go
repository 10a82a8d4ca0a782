package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/scanroi/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scanroi.yaml")

	stdout, _, err := executeCommand(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Configuration written to "+path)
	assert.FileExists(t, path)

	_, _, err = executeCommand(t, "config", "init", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = executeCommand(t, "config", "init", path, "--force")
	require.NoError(t, err)

	stdout, _, err = executeCommand(t, "--config", path, "config", "show", "--mount-angle", "180")
	require.NoError(t, err)
	assert.Contains(t, stdout, "# loaded from "+path)

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &cfg))
	assert.Equal(t, 180, cfg.Camera.MountAngle)
	assert.Equal(t, 1080, cfg.Camera.ViewWidth)
	assert.Equal(t, "zxing", cfg.Scanner.Engine)
}

func TestConfigFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.yaml")
	data := []byte(`camera:
  mount_angle: 0
  view_width: 640
  view_height: 480
scanner:
  decode_rect: [10, 20, 110, 220]
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	stdout, _, err := executeCommand(t, "--config", path, "region")
	require.NoError(t, err)
	assert.Contains(t, stdout, "crop:     10,20,110,220 (preview 640x480)")
}

func TestConfigMissingFile(t *testing.T) {
	_, _, err := executeCommand(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file does not exist")
}

func TestConfigPaths(t *testing.T) {
	stdout, _, err := executeCommand(t, "config", "paths")
	require.NoError(t, err)
	assert.Contains(t, stdout, ".\n")
	assert.Contains(t, stdout, "/etc/scanroi")
}
