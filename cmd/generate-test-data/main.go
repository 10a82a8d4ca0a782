package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/scanroi/internal/testutil"
)

// frameFixture describes a generated frame and what decoding it should yield.
type frameFixture struct {
	File     string   `json:"file"`
	Upright  bool     `json:"upright"`
	Rect     []int    `json:"rect,omitempty"`
	Expected []string `json:"expected"`
}

// frameSpec is a frame to render plus the fixtures that use it.
type frameSpec struct {
	name     string
	render   func() (image.Image, error)
	fixtures []frameFixture
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir           = flag.String("out", "testdata", "Output directory, relative to the project root")
		generateFixtures = flag.Bool("fixtures", true, "Write the fixture manifest")
		verbose          = flag.Bool("v", false, "Verbose output")
		help             = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate synthetic camera frames for scanroi testing.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                    # Generate frames and fixtures\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -fixtures=false    # Generate only frames\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	root, err := testutil.GetProjectRoot()
	if err != nil {
		slog.Error("Failed to find project root", "error", err)
		os.Exit(1)
	}
	if *verbose {
		slog.Info("Project root", "path", root)
	}

	dir := filepath.Join(root, *outDir)
	specs := frameSpecs()

	var fixtures []frameFixture
	for _, spec := range specs {
		img, err := spec.render()
		if err != nil {
			slog.Error("Failed to render frame", "frame", spec.name, "error", err)
			os.Exit(1)
		}
		path := filepath.Join(testutil.FramesDir(dir), spec.name)
		if err := testutil.SavePNG(img, path); err != nil {
			slog.Error("Failed to save frame", "path", path, "error", err)
			os.Exit(1)
		}
		if *verbose {
			slog.Info("Generated frame", "path", path)
		}
		fixtures = append(fixtures, spec.fixtures...)
	}

	if *generateFixtures {
		path := testutil.FixturesFile(dir)
		if err := writeFixtures(path, fixtures); err != nil {
			slog.Error("Failed to write fixtures", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Test data generation completed", "frames", len(specs), "fixtures", len(fixtures))
}

// frameSpecs lists the generated frames. Upright frames are 480x640 portrait
// photos; on the default 1080x1920 view the screen halves are 0,0,1080,1080
// and 0,1080,1080,1920.
func frameSpecs() []frameSpec {
	return []frameSpec{
		{
			name: "portrait_two_qr.png",
			render: func() (image.Image, error) {
				return scene(480, 640,
					qr("inside", image.Pt(140, 100)),
					qr("outside", image.Pt(140, 410)))
			},
			fixtures: []frameFixture{
				{File: "portrait_two_qr.png", Upright: true, Rect: []int{0, 0, 1080, 1080}, Expected: []string{"inside"}},
				{File: "portrait_two_qr.png", Upright: true, Rect: []int{0, 1080, 1080, 1920}, Expected: []string{"outside"}},
			},
		},
		{
			name: "single_qr.png",
			render: func() (image.Image, error) {
				return scene(480, 640, qr("scanroi", image.Pt(140, 220)))
			},
			fixtures: []frameFixture{{File: "single_qr.png", Upright: true, Expected: []string{"scanroi"}}},
		},
		{
			name: "ean13.png",
			render: func() (image.Image, error) {
				code, err := testutil.EncodeEAN13("9780306406157", 300, 120)
				if err != nil {
					return nil, err
				}
				return testutil.Scene(480, 640, testutil.Placement{Symbol: code, At: image.Pt(90, 260)}), nil
			},
			fixtures: []frameFixture{{File: "ean13.png", Upright: true, Expected: []string{"9780306406157"}}},
		},
		{
			name: "code128.png",
			render: func() (image.Image, error) {
				code, err := testutil.EncodeCode128("SCANROI-128", 300, 100)
				if err != nil {
					return nil, err
				}
				return testutil.Scene(480, 640, testutil.Placement{Symbol: code, At: image.Pt(90, 270)}), nil
			},
			fixtures: []frameFixture{{File: "code128.png", Upright: true, Expected: []string{"SCANROI-128"}}},
		},
		{
			name: "blank.png",
			render: func() (image.Image, error) {
				return testutil.Scene(640, 480), nil
			},
			fixtures: []frameFixture{{File: "blank.png", Expected: []string{}}},
		},
	}
}

type placement struct {
	text string
	at   image.Point
}

func qr(text string, at image.Point) placement {
	return placement{text: text, at: at}
}

func scene(width, height int, codes ...placement) (image.Image, error) {
	placements := make([]testutil.Placement, 0, len(codes))
	for _, c := range codes {
		img, err := testutil.EncodeQRCode(c.text, 200)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %q: %w", c.text, err)
		}
		placements = append(placements, testutil.Placement{Symbol: img, At: c.at})
	}
	return testutil.Scene(width, height, placements...), nil
}

func writeFixtures(path string, fixtures []frameFixture) error {
	if err := testutil.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create fixtures directory: %w", err)
	}
	data, err := json.MarshalIndent(fixtures, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
