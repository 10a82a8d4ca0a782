package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/scanroi/internal/config"
	"github.com/MeKo-Tech/scanroi/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	outputFormatJSON = "json"
	outputFormatText = "text"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "scanroi",
	Short: "Region-of-interest barcode scanning for camera frames",
	Long: `scanroi maps a scan rectangle drawn on screen onto the camera sensor frame,
taking sensor mounting, display rotation and aspect differences into account,
and decodes 1D/2D barcodes inside that region only.

Commands work on a simulated device described by the camera settings
(config file, SCANROI_* environment variables or flags).

Examples:
  scanroi decode photo.png --upright --rect 0,0,1080,1080
  scanroi region --rect 100,200,500,800
  scanroi symbologies
  scanroi serve --port 8080`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _ := cmd.PersistentFlags().GetBool("version")
		if v {
			ver, commit, date := version.Info()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "scanroi version %s\n", ver)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", commit)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Date: %s\n", date)
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is search in ., $HOME, $HOME/.config/scanroi, /etc/scanroi)")
	flags.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("version", false, "print version information and exit")

	// Decoder
	flags.String("engine", "zxing", "decoding engine")
	flags.StringSliceP("symbologies", "s", []string{"all"}, "symbologies to enable (e.g. qr,ean13 or all)")
	flags.Bool("cache", false, "suppress symbols already reported in earlier frames")
	flags.IntSlice("rect", nil, "scan rectangle in view pixels: left,top,right,bottom")

	// Device geometry
	flags.String("facing", "back", "camera facing (back, front)")
	flags.Int("mount-angle", 90, "sensor mount angle in degrees (0, 90, 180, 270)")
	flags.Int("display-rotation", 0, "display rotation in quarter turns (0-3)")
	flags.String("display", "auto", "display orientation (portrait, landscape, auto)")
	flags.Int("preview-width", 640, "camera preview width in sensor pixels")
	flags.Int("preview-height", 480, "camera preview height in sensor pixels")
	flags.Int("view-width", 1080, "scanner view width in pixels")
	flags.Int("view-height", 1920, "scanner view height in pixels")

	bindFlags(flags, rootFlagBindings)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if globalConfig == nil {
			if err := initConfig(); err != nil {
				return err
			}
		}
		cfg := GetConfig()

		var logLevel slog.Level
		if cfg.Verbose {
			logLevel = slog.LevelDebug
		} else {
			switch cfg.LogLevel {
			case "debug":
				logLevel = slog.LevelDebug
			case "warn":
				logLevel = slog.LevelWarn
			case "error":
				logLevel = slog.LevelError
			default:
				logLevel = slog.LevelInfo
			}
		}

		// Logs go to stderr so command output on stdout stays machine readable.
		logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
		return nil
	}
}

type flagBinding struct {
	key  string
	flag string
}

// rootFlagBindings maps persistent flags to configuration keys.
var rootFlagBindings = []flagBinding{
	{"verbose", "verbose"},
	{"log_level", "log-level"},
	{"scanner.engine", "engine"},
	{"scanner.symbologies", "symbologies"},
	{"scanner.cache_enabled", "cache"},
	{"scanner.decode_rect", "rect"},
	{"camera.facing", "facing"},
	{"camera.mount_angle", "mount-angle"},
	{"camera.display_rotation", "display-rotation"},
	{"camera.display", "display"},
	{"camera.preview_width", "preview-width"},
	{"camera.preview_height", "preview-height"},
	{"camera.view_width", "view-width"},
	{"camera.view_height", "view-height"},
}

// bindFlags binds flags to viper configuration keys.
func bindFlags(flags *pflag.FlagSet, bindings []flagBinding) {
	for _, binding := range bindings {
		if err := viper.BindPFlag(binding.key, flags.Lookup(binding.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", binding.flag, err))
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	configLoader = config.NewLoader()

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFileWithoutValidation(cfgFile)
	} else {
		globalConfig, err = configLoader.LoadWithoutValidation()
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	return nil
}

// GetConfig returns the global configuration including flag overrides.
func GetConfig() *config.Config {
	if globalConfig == nil {
		if err := initConfig(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return &config.Config{}
		}
	}

	// Flag bindings are resolved lazily by viper, so unmarshal again to pick
	// up values set on the command line.
	var cfg config.Config
	if err := GetConfigLoader().GetViper().Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshaling updated configuration: %v\n", err)
		return globalConfig
	}
	return &cfg
}

// loadValidConfig returns the effective configuration or a validation error.
func loadValidConfig() (*config.Config, error) {
	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}
