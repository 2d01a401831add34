package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pdsapp/pds/internal/service"
	"golang.org/x/sync/errgroup"
)

// RunConfig groups what Run needs to serve until shutdown.
type RunConfig struct {
	Server          *http.Server
	Sessions        *service.SessionTracker
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// Run serves HTTP and relays session events until ctx is canceled or either
// component fails, then shuts the server down gracefully.
func Run(ctx context.Context, cfg RunConfig) error {
	if cfg.Server == nil {
		return errors.New("http server is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", cfg.Server.Addr)
		if err := cfg.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.Sessions != nil {
		g.Go(func() error {
			if err := cfg.Sessions.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("session events: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down HTTP server")
		// the parent context is already done; shutdown gets its own deadline
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), timeout)
		defer cancel()
		if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		logger.Info("HTTP server stopped")
		return nil
	})

	return g.Wait()
}
