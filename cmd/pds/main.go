package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pdsapp/pds/config"
	"github.com/pdsapp/pds/internal/bootstrap"
	"github.com/pdsapp/pds/internal/observability/statsd"
	"github.com/redis/go-redis/v9"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		stop()
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
	stop()
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	logger = bootstrap.ConfigureLogger(os.Stdout, &cfg)
	logStartupInfo(ctx, logger, &cfg)

	db, err := openProfileDB(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			if cerr := db.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close database failed", "error", cerr)
			}
		}()
	}

	// A missing Redis is reported through the unavailable auth page rather
	// than refusing to start.
	redisClient, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{RedisConfig: cfg.Redis, Logger: logger})
	if err != nil {
		logger.ErrorContext(ctx, "connect redis failed", "error", err)
	} else {
		defer closeRedis(ctx, redisClient, logger)
	}

	metrics, closeMetrics, err := newMetrics(cfg.Observability.Metrics, logger)
	if err != nil {
		return err
	}
	defer closeMetrics()

	auth := bootstrap.BuildAuth(ctx, bootstrap.AuthConfig{
		Auth:        cfg.Auth,
		RedisConfig: cfg.Redis,
		RedisClient: redisClient,
		DB:          db,
		Metrics:     metrics,
		Logger:      logger,
	})

	server := bootstrap.NewHTTPServer(bootstrap.HTTPServerConfig{
		HTTP:   cfg.HTTP,
		Auth:   auth,
		Logger: logger,
	})

	return bootstrap.Run(ctx, bootstrap.RunConfig{
		Server:          server,
		Sessions:        auth.Sessions,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		Logger:          logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting pds",
		"addr", cfg.HTTP.Addr,
		"auth_mode", cfg.Auth.Mode,
		"dev", cfg.IsDev,
		"db_disabled", cfg.Postgres.Disabled,
		"db_host", cfg.Postgres.Host,
		"db_name", cfg.Postgres.Name,
		"metrics", cfg.Observability.Metrics.IsEnabled())
}

func openProfileDB(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*sql.DB, error) {
	if cfg.Postgres.Disabled {
		logger.InfoContext(ctx, "profile database disabled via config")
		return nil, nil
	}
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if !cfg.Postgres.RunMigrationsOnStart {
		logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
		return db, nil
	}
	if err := bootstrap.RunMigrations(ctx, db, logger); err != nil {
		if cerr := db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database after migration failure", "error", cerr)
		}
		return nil, err
	}
	return db, nil
}

// newMetrics returns a nil Sink when metrics are off so callers skip emission.
//
//nolint:ireturn // Sink is nil-able by contract.
func newMetrics(cfg config.ObservabilityMetricsConfig, logger *slog.Logger) (statsd.Sink, func(), error) {
	if !cfg.IsEnabled() {
		return nil, func() {}, nil
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled:    true,
		Address:    cfg.StatsdAddress,
		Prefix:     cfg.Prefix,
		GlobalTags: cfg.Tags,
		Logger:     logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("statsd client: %w", err)
	}
	return client, func() {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("close statsd client failed", "error", cerr)
		}
	}, nil
}

func closeRedis(ctx context.Context, client redis.UniversalClient, logger *slog.Logger) {
	if cerr := client.Close(); cerr != nil {
		logger.ErrorContext(ctx, "close redis failed", "error", cerr)
	}
}
