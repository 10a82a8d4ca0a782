package cmd

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/MeKo-Tech/scanroi/internal/server"
	"github.com/MeKo-Tech/scanroi/internal/symbology"
	"github.com/spf13/cobra"
)

// symbologiesCmd represents the symbologies command.
var symbologiesCmd = &cobra.Command{
	Use:   "symbologies",
	Short: "List supported barcode symbologies",
	Long: `List the symbology table with ids, names and dimensions. Symbologies
enabled by the current configuration (--symbologies) are marked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		enabled, err := cfg.SymbologyList()
		if err != nil {
			return fmt.Errorf("invalid symbologies: %w", err)
		}
		format, _ := cmd.Flags().GetString("format")

		all := symbology.All()
		list := make([]server.SymbologyInfo, len(all))
		for i, sym := range all {
			list[i] = server.SymbologyInfo{
				ID:         sym.ID(),
				Name:       sym.String(),
				Dimensions: sym.Dimensions(),
				Enabled:    slices.Contains(enabled, sym),
			}
		}

		out := cmd.OutOrStdout()
		switch format {
		case outputFormatJSON:
			data, err := json.MarshalIndent(server.SymbologiesResponse{Symbologies: list, Count: len(list)}, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal JSON: %w", err)
			}
			_, err = fmt.Fprintln(out, string(data))
			return err
		case outputFormatText:
			if _, err := fmt.Fprintf(out, "%-4s %-12s %-4s %s\n", "ID", "NAME", "DIM", "ENABLED"); err != nil {
				return err
			}
			for _, info := range list {
				mark := "-"
				if info.Enabled {
					mark = "yes"
				}
				if _, err := fmt.Fprintf(out, "%-4d %-12s %-4s %s\n", info.ID, info.Name, fmt.Sprintf("%dD", info.Dimensions), mark); err != nil {
					return err
				}
			}
			return nil
		default:
			return fmt.Errorf("invalid output format: %s (must be one of: text, json)", format)
		}
	},
}

func init() {
	rootCmd.AddCommand(symbologiesCmd)
	symbologiesCmd.Flags().StringP("format", "f", outputFormatText, "output format (text, json)")
}
