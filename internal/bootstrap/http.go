package bootstrap

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pdsapp/pds/config"
	httpx "github.com/pdsapp/pds/internal/http"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	HTTP   config.HTTPConfig
	Auth   AuthComponents
	Logger *slog.Logger
}

// NewHTTPServer builds the HTTP server without starting it.
func NewHTTPServer(cfg HTTPServerConfig) *http.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handler := buildHTTPHandler(logger, httpx.RouterServices{
		Auth:         cfg.Auth.Auth,
		Callbacks:    cfg.Auth.Callbacks,
		Navigator:    cfg.Auth.Navigator,
		CookieDomain: cfg.HTTP.CookieDomain,
		Logger:       logger,
	})

	addr := cfg.HTTP.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// the callback wait endpoint blocks for up to the configured wait
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// buildHTTPHandler applies the outer middleware.
// Order: RequestID -> Recover -> Logging -> Router.
func buildHTTPHandler(logger *slog.Logger, services httpx.RouterServices) http.Handler {
	h := httpx.NewRouter(services)
	h = httpx.Logging(logger)(h)
	h = httpx.Recover(logger)(h)
	h = httpx.RequestID()(h)
	return h
}
