package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/scanroi/internal/config"
	"github.com/MeKo-Tech/scanroi/internal/server"
	"github.com/spf13/cobra"
)

// pruneInterval is how often idle rate limit entries are dropped.
const pruneInterval = 10 * time.Minute

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the scan API",
	Long: `Start an HTTP server that maps scan rectangles and decodes uploaded frames.

The server provides the following endpoints:
  POST /scan/region  - Map a scan rectangle to the sensor crop
  POST /scan/frame   - Decode an uploaded frame inside the scan rectangle
  GET  /ws/scan      - WebSocket session for continuous frame scanning
  GET  /symbologies  - List supported symbologies
  GET  /health       - Health check endpoint
  GET  /metrics      - Prometheus metrics

The device described by the camera settings is the default for requests
that do not describe their own.

Examples:
  scanroi serve
  scanroi serve --port 8080
  scanroi serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadValidConfig()
		if err != nil {
			return err
		}

		serverConfig, shutdownTimeout, err := buildServerConfig(cmd, cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		scanServer, err := server.NewServer(serverConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}

		mux := http.NewServeMux()
		scanServer.SetupRoutes(mux)

		httpServer := &http.Server{
			Addr:              serverConfig.Addr(),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       scanServer.Timeout(),
			WriteTimeout:      scanServer.Timeout(),
		}

		go func() {
			slog.Info("Starting scan server", "host", serverConfig.Host, "port", serverConfig.Port,
				"engine", serverConfig.Engine, "rate_limit", serverConfig.RateLimit != nil)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		if limiter := scanServer.RateLimiter(); limiter != nil {
			go func() {
				ticker := time.NewTicker(pruneInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						if n := limiter.Prune(24 * time.Hour); n > 0 {
							slog.Debug("Pruned idle rate limit clients", "count", n)
						}
					}
				}
			}()
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}
		return nil
	},
}

// buildServerConfig merges the configuration with serve flags the user set.
func buildServerConfig(cmd *cobra.Command, cfg *config.Config) (server.Config, time.Duration, error) {
	host := cfg.Server.Host
	if cmd.Flags().Changed("host") {
		host, _ = cmd.Flags().GetString("host")
	}

	port := cfg.Server.Port
	if cmd.Flags().Changed("port") {
		port, _ = cmd.Flags().GetInt("port")
	}

	corsOrigin := cfg.Server.CORSOrigin
	if cmd.Flags().Changed("cors-origin") {
		corsOrigin, _ = cmd.Flags().GetString("cors-origin")
	}

	maxUploadSize := cfg.Server.MaxUploadMB
	if cmd.Flags().Changed("max-upload-size") {
		maxUploadSize, _ = cmd.Flags().GetInt("max-upload-size")
	}

	timeout := cfg.Server.TimeoutSec
	if cmd.Flags().Changed("timeout") {
		timeout, _ = cmd.Flags().GetInt("timeout")
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if cmd.Flags().Changed("shutdown-timeout") {
		shutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
	}

	rl := cfg.Server.RateLimit
	if cmd.Flags().Changed("rate-limit-enabled") {
		rl.Enabled, _ = cmd.Flags().GetBool("rate-limit-enabled")
	}
	if cmd.Flags().Changed("requests-per-minute") {
		rl.RequestsPerMinute, _ = cmd.Flags().GetInt("requests-per-minute")
	}
	if cmd.Flags().Changed("requests-per-hour") {
		rl.RequestsPerHour, _ = cmd.Flags().GetInt("requests-per-hour")
	}
	if cmd.Flags().Changed("max-requests-per-day") {
		rl.MaxRequestsPerDay, _ = cmd.Flags().GetInt("max-requests-per-day")
	}
	if cmd.Flags().Changed("max-data-per-day") {
		rl.MaxDataPerDayMB, _ = cmd.Flags().GetInt("max-data-per-day")
	}

	if port < 1 || port > 65535 {
		return server.Config{}, 0, fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
	}
	if timeout <= 0 {
		return server.Config{}, 0, fmt.Errorf("invalid timeout: %d (must be positive)", timeout)
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = config.DefaultConfig().Server.ShutdownTimeout
	}

	g, err := cfg.Geometry()
	if err != nil {
		return server.Config{}, 0, err
	}
	list, err := cfg.SymbologyList()
	if err != nil {
		return server.Config{}, 0, err
	}

	serverConfig := server.Config{
		Host:         host,
		Port:         port,
		CORSOrigin:   corsOrigin,
		MaxUploadMB:  int64(maxUploadSize),
		TimeoutSec:   timeout,
		Engine:       cfg.Scanner.Engine,
		Symbologies:  list,
		CacheEnabled: cfg.Scanner.CacheEnabled,
		Geometry:     g,
	}
	if rl.Enabled {
		serverConfig.RateLimit = &server.Limits{
			RequestsPerMinute: rl.RequestsPerMinute,
			RequestsPerHour:   rl.RequestsPerHour,
			RequestsPerDay:    rl.MaxRequestsPerDay,
			BytesPerDay:       int64(rl.MaxDataPerDayMB) * 1024 * 1024,
		}
	}
	return serverConfig, time.Duration(shutdownTimeout) * time.Second, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 20, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 30, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	// Rate limiting flags
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable per-client rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 600, "maximum requests or frames per minute per client (0 = unlimited)")
	serveCmd.Flags().Int("requests-per-hour", 10000, "maximum requests or frames per hour per client (0 = unlimited)")
	serveCmd.Flags().Int("max-requests-per-day", 0, "maximum requests per day per client (0 = unlimited)")
	serveCmd.Flags().Int("max-data-per-day", 0, "maximum data per day per client in MB (0 = unlimited)")
}
