package cmd

import (
	"bytes"
	"image"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/scanroi/internal/testutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// executeCommand runs the root command with args on a fresh configuration
// and returns stdout and stderr separately.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetCommandState(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// resetCommandState restores flag defaults and drops cached configuration so
// that runs do not leak into each other.
func resetCommandState(root *cobra.Command) {
	resetFlags(root)
	globalConfig = nil
	configLoader = nil
	cfgFile = ""
	viper.Reset()
	bindFlags(root.PersistentFlags(), rootFlagBindings)
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			def := strings.Trim(f.DefValue, "[]")
			var vals []string
			if def != "" {
				vals = strings.Split(def, ",")
			}
			_ = sv.Replace(vals)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// writeUprightScene saves a portrait photo with QR code "inside" on the
// upper half of the screen and "outside" on the lower half.
func writeUprightScene(t *testing.T) string {
	t.Helper()
	scene := testutil.Scene(480, 640,
		testutil.Placement{Symbol: testutil.QRCode(t, "inside", 200), At: image.Pt(140, 100)},
		testutil.Placement{Symbol: testutil.QRCode(t, "outside", 200), At: image.Pt(140, 410)},
	)
	path := filepath.Join(t.TempDir(), "photo.png")
	testutil.SaveImage(t, scene, path)
	return path
}
