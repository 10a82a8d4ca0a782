package batch

import (
	"errors"
	"fmt"
)

// ErrNoImages is returned when arguments name no image file.
var ErrNoImages = errors.New("no image files found")

// Collect returns the frames named by args, or ErrNoImages when there are none.
func Collect(args []string, opts Options) ([]string, error) {
	files, err := DiscoverFiles(args, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoImages
	}
	return files, nil
}
