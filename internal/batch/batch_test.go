package batch

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect_NoImageFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "readme.txt"))

	files, err := Collect([]string{dir}, Options{})
	require.ErrorIs(t, err, ErrNoImages)
	assert.Nil(t, files)
}

func TestCollect_InvalidPath(t *testing.T) {
	_, err := Collect([]string{"/nonexistent/frame.png"}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to discover image files")
}

func TestCollect_MixedArguments(t *testing.T) {
	dir := t.TempDir()
	single := touch(t, filepath.Join(t.TempDir(), "single.png"))
	a := touch(t, filepath.Join(dir, "a.png"))
	b := touch(t, filepath.Join(dir, "b.bmp"))

	files, err := Collect([]string{single, dir}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{single, a, b}, files)
}
