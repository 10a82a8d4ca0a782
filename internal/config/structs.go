//nolint:lll
package config

// Config represents the complete configuration for the scanroi application.
// It supports loading from configuration files, environment variables, and
// command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Decoder configuration
	Scanner ScannerConfig `mapstructure:"scanner" yaml:"scanner" json:"scanner"`

	// Camera and display geometry
	Camera CameraConfig `mapstructure:"camera" yaml:"camera" json:"camera"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// ScannerConfig contains decoder settings.
type ScannerConfig struct {
	Engine       string   `mapstructure:"engine" yaml:"engine" json:"engine"`
	Symbologies  []string `mapstructure:"symbologies" yaml:"symbologies" json:"symbologies"`
	CacheEnabled bool     `mapstructure:"cache_enabled" yaml:"cache_enabled" json:"cache_enabled"`
	// DecodeRect is the scan rectangle in view pixels as left, top, right,
	// bottom. Empty means whole frames are scanned.
	DecodeRect []int `mapstructure:"decode_rect" yaml:"decode_rect,omitempty" json:"decode_rect,omitempty"`
}

// CameraConfig describes the camera, the display and the scanner view.
type CameraConfig struct {
	Facing          string `mapstructure:"facing" yaml:"facing" json:"facing"`
	MountAngle      int    `mapstructure:"mount_angle" yaml:"mount_angle" json:"mount_angle"`
	PreviewWidth    int    `mapstructure:"preview_width" yaml:"preview_width" json:"preview_width"`
	PreviewHeight   int    `mapstructure:"preview_height" yaml:"preview_height" json:"preview_height"`
	DisplayRotation int    `mapstructure:"display_rotation" yaml:"display_rotation" json:"display_rotation"`
	// Display is "portrait", "landscape" or "auto" to derive it from the view size.
	Display    string `mapstructure:"display" yaml:"display" json:"display"`
	ViewWidth  int    `mapstructure:"view_width" yaml:"view_width" json:"view_width"`
	ViewHeight int    `mapstructure:"view_height" yaml:"view_height" json:"view_height"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int  `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int  `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDayMB   int  `mapstructure:"max_data_per_day_mb" yaml:"max_data_per_day_mb" json:"max_data_per_day_mb"`
}
