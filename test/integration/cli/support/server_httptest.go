package support

import (
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/MeKo-Tech/scanroi/internal/config"
	"github.com/MeKo-Tech/scanroi/internal/server"
)

// HTTPTestServerWrapper wraps an in-process scan server.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
}

// createTestHTTPServer starts the scan API on the default device with the
// real decoding engine.
func (testCtx *TestContext) createTestHTTPServer(limits *server.Limits) error {
	cfg := config.DefaultConfig()
	g, err := cfg.Geometry()
	if err != nil {
		return fmt.Errorf("default geometry: %w", err)
	}
	list, err := cfg.SymbologyList()
	if err != nil {
		return err
	}

	scanServer, err := server.NewServer(server.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		CORSOrigin:  cfg.Server.CORSOrigin,
		MaxUploadMB: int64(cfg.Server.MaxUploadMB),
		TimeoutSec:  cfg.Server.TimeoutSec,
		Engine:      cfg.Scanner.Engine,
		Symbologies: list,
		Geometry:    g,
		RateLimit:   limits,
	})
	if err != nil {
		return fmt.Errorf("failed to create scan server: %w", err)
	}

	mux := http.NewServeMux()
	scanServer.SetupRoutes(mux)

	testCtx.HTTPTestServer = &HTTPTestServerWrapper{
		Server:     httptest.NewServer(mux),
		TestServer: scanServer,
	}
	return nil
}

func (testCtx *TestContext) stopTestHTTPServer() {
	if testCtx.HTTPTestServer != nil && testCtx.HTTPTestServer.Server != nil {
		testCtx.HTTPTestServer.Server.Close()
	}
	testCtx.HTTPTestServer = nil
}
