package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/scanroi/internal/barcode"
	"github.com/MeKo-Tech/scanroi/internal/batch"
	"github.com/MeKo-Tech/scanroi/internal/common"
	"github.com/MeKo-Tech/scanroi/internal/config"
	"github.com/MeKo-Tech/scanroi/internal/frame"
	"github.com/MeKo-Tech/scanroi/internal/scanner"
	"github.com/MeKo-Tech/scanroi/internal/server"
	"github.com/MeKo-Tech/scanroi/internal/utils"
	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
)

// decodeCmd represents the decode command.
var decodeCmd = &cobra.Command{
	Use:   "decode [image files...]",
	Short: "Decode barcodes inside the scan rectangle of camera frames",
	Long: `Decode barcodes in one or more images treated as camera frames.

Images are sensor frames by default. Pass --upright for photos as seen on
screen; they are rotated into the sensor layout of the configured device
first. Only the region under the scan rectangle (--rect, in view pixels) is
decoded. Without a rectangle the whole frame is scanned.

Directories are expanded to the images they contain; --recursive descends
into subdirectories and --include/--exclude filter by file name.

Examples:
  scanroi decode frame.png
  scanroi decode photo.jpg --upright --rect 0,420,1080,1500
  scanroi decode *.png --symbologies qr,ean13 --cache --format json
  scanroi decode frames/ --recursive --exclude '*_roi.png'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadValidConfig()
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		format = strings.ToLower(format)
		if !slices.Contains([]string{outputFormatText, outputFormatJSON}, format) {
			return fmt.Errorf("invalid output format: %s (must be one of: text, json)", format)
		}
		upright, _ := cmd.Flags().GetBool("upright")
		outputFile, _ := cmd.Flags().GetString("output")
		annotateDir, _ := cmd.Flags().GetString("annotate-dir")
		showStats, _ := cmd.Flags().GetBool("stats")
		recursive, _ := cmd.Flags().GetBool("recursive")
		include, _ := cmd.Flags().GetStringSlice("include")
		exclude, _ := cmd.Flags().GetStringSlice("exclude")

		files, err := batch.Collect(args, batch.Options{
			Recursive:       recursive,
			IncludePatterns: include,
			ExcludePatterns: exclude,
		})
		if err != nil {
			return err
		}

		sc, g, err := newConfiguredScanner(cfg)
		if err != nil {
			return err
		}

		stats := common.NewRunStats("decode")
		results := make([]fileResult, 0, len(files))
		for _, path := range files {
			res, err := decodeFile(sc, g, path, upright, annotateDir)
			if err != nil {
				stats.Fail()
				return err
			}
			stats.Add(res.duration)
			results = append(results, res)
		}
		stats.Finish()

		var out string
		if format == outputFormatJSON {
			data, err := json.MarshalIndent(results, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal JSON: %w", err)
			}
			out = string(data)
		} else {
			out = formatDecodeText(results)
		}

		if outputFile != "" {
			if err := os.WriteFile(outputFile, []byte(out+"\n"), 0o600); err != nil {
				return fmt.Errorf("failed to write output file: %w", err)
			}
			slog.Info("Results written", "file", outputFile)
		} else if _, err := fmt.Fprintln(cmd.OutOrStdout(), out); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}

		if showStats {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), stats.String())
		}
		return nil
	},
}

// fileResult is the decode outcome for one input image.
type fileResult struct {
	File         string           `json:"file"`
	Width        int              `json:"width"`
	Height       int              `json:"height"`
	Crop         *server.Rect     `json:"crop,omitempty"`
	Results      []scanner.Result `json:"results"`
	DecodeTimeMs float64          `json:"decode_time_ms"`
	Annotated    string           `json:"annotated,omitempty"`

	duration time.Duration
}

// newConfiguredScanner builds a scanner on the configured device with the
// configured symbologies, cache setting and scan rectangle.
func newConfiguredScanner(cfg *config.Config) (*scanner.Scanner, scanner.Geometry, error) {
	g, err := cfg.Geometry()
	if err != nil {
		return nil, g, err
	}
	engine, err := barcode.NewEngine(cfg.Scanner.Engine)
	if err != nil {
		return nil, g, err
	}
	sc, err := scanner.NewStatic(engine, g)
	if err != nil {
		return nil, g, err
	}
	list, err := cfg.SymbologyList()
	if err != nil {
		return nil, g, err
	}
	if err := sc.SetSymbology(list); err != nil {
		return nil, g, err
	}
	sc.EnableCache(cfg.Scanner.CacheEnabled)

	rect, ok, err := cfg.DecodeRect()
	if err != nil {
		return nil, g, err
	}
	if ok {
		sc.SetDecodeRect(rect)
	}
	return sc, g, nil
}

// decodeFile decodes one image. The preview size follows the frame size.
func decodeFile(sc *scanner.Scanner, g scanner.Geometry, path string, upright bool, annotateDir string) (fileResult, error) {
	img, meta, err := utils.LoadImage(path)
	if err != nil {
		return fileResult{}, fmt.Errorf("failed to load %s: %w", path, err)
	}
	if upright {
		if img, err = utils.SensorImage(img, g.Rotation()); err != nil {
			return fileResult{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	f, err := frame.FromImage(img)
	if err != nil {
		return fileResult{}, fmt.Errorf("%s: %w", path, err)
	}
	defer f.Release()

	g.PreviewWidth, g.PreviewHeight = f.Width, f.Height
	cam := g.Camera()
	crop, hasCrop, err := sc.CropRect(cam)
	if err != nil {
		return fileResult{}, fmt.Errorf("%s: %w", path, err)
	}

	timer := common.NewNamedTimer(path)
	symbols, err := sc.Decode(f.Data, cam)
	if err != nil {
		return fileResult{}, fmt.Errorf("decode failed for %s: %w", path, err)
	}
	timer.Stop()
	slog.Debug("Decoded frame", "file", path, "format", meta.Format, "symbols", len(symbols), "duration", timer.Duration())

	res := fileResult{
		File:         path,
		Width:        f.Width,
		Height:       f.Height,
		Results:      symbols,
		DecodeTimeMs: timer.Milliseconds(),
		duration:     timer.Duration(),
	}
	if hasCrop {
		c := server.RectOf(crop)
		res.Crop = &c
	}

	if annotateDir != "" && hasCrop {
		if err := os.MkdirAll(annotateDir, 0o750); err != nil {
			return fileResult{}, fmt.Errorf("failed to create annotate directory: %w", err)
		}
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		outPath := filepath.Join(annotateDir, base+"_roi.png")
		if err := imaging.Save(utils.Annotate(img, crop), outPath); err != nil {
			return fileResult{}, fmt.Errorf("failed to save annotated frame: %w", err)
		}
		res.Annotated = outPath
	}
	return res, nil
}

func formatDecodeText(results []fileResult) string {
	var b strings.Builder
	for i, res := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s (%dx%d)", res.File, res.Width, res.Height)
		if res.Crop != nil {
			fmt.Fprintf(&b, " crop %d,%d,%d,%d", res.Crop.Left, res.Crop.Top, res.Crop.Right, res.Crop.Bottom)
		}
		fmt.Fprintf(&b, ": %d symbol(s)\n", len(res.Results))
		for _, sym := range res.Results {
			fmt.Fprintf(&b, "  %-12s %s\n", sym.Symbology, sym.Contents)
		}
		if res.Annotated != "" {
			fmt.Fprintf(&b, "  annotated: %s\n", res.Annotated)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().Bool("upright", false, "images are upright photos, not sensor frames")
	decodeCmd.Flags().StringP("format", "f", outputFormatText, "output format (text, json)")
	decodeCmd.Flags().StringP("output", "o", "", "write results to file instead of stdout")
	decodeCmd.Flags().String("annotate-dir", "", "save frames with the crop outlined to this directory")
	decodeCmd.Flags().Bool("stats", false, "print timing and memory statistics to stderr")
	decodeCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	decodeCmd.Flags().StringSlice("include", nil, "only decode files matching these patterns")
	decodeCmd.Flags().StringSlice("exclude", nil, "skip files matching these patterns")
}
