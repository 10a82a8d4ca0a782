package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MeKo-Tech/scanroi/internal/server"
	"github.com/spf13/cobra"
)

// regionCmd represents the region command.
var regionCmd = &cobra.Command{
	Use:   "region",
	Short: "Print the sensor crop for a scan rectangle",
	Long: `Map the scan rectangle (--rect, in view pixels) onto the camera sensor and
print the resulting crop in preview pixels.

The device is described by the camera settings: sensor mount angle, camera
facing, display rotation and orientation, preview size and view size.

Examples:
  scanroi region --rect 100,200,500,800
  scanroi region --rect 0,0,1920,1080 --view-width 1920 --view-height 1080 --display-rotation 1
  scanroi region --rect 100,200,500,800 --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadValidConfig()
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		if format != outputFormatText && format != outputFormatJSON {
			return fmt.Errorf("invalid output format: %s (must be one of: text, json)", format)
		}

		sc, g, err := newConfiguredScanner(cfg)
		if err != nil {
			return err
		}
		rect, ok := sc.DecodeRect()
		if !ok {
			return errors.New("no scan rectangle: pass --rect left,top,right,bottom")
		}
		crop, _, err := sc.CropRect(g.Camera())
		if err != nil {
			return err
		}

		c := server.RectOf(crop)
		resp := server.RegionResponse{
			Success:       true,
			Crop:          &c,
			Rotation:      int(g.Rotation()),
			PreviewWidth:  g.PreviewWidth,
			PreviewHeight: g.PreviewHeight,
		}

		out := cmd.OutOrStdout()
		if format == outputFormatJSON {
			data, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal JSON: %w", err)
			}
			_, err = fmt.Fprintln(out, string(data))
			return err
		}

		_, err = fmt.Fprintf(out, "rect:     %d,%d,%d,%d (view %dx%d, %s)\n",
			rect.Min.X, rect.Min.Y, rect.Max.X, rect.Max.Y, g.ViewWidth, g.ViewHeight, g.Display)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "rotation: %d\ncrop:     %d,%d,%d,%d (preview %dx%d)\n",
			resp.Rotation, c.Left, c.Top, c.Right, c.Bottom, g.PreviewWidth, g.PreviewHeight)
		return err
	},
}

func init() {
	rootCmd.AddCommand(regionCmd)
	regionCmd.Flags().StringP("format", "f", outputFormatText, "output format (text, json)")
}
