package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/httpserver"
	"storefront/internal/migrate"
	"storefront/internal/repository/clientstate"
	"storefront/internal/shopper"

	"github.com/rs/zerolog"
)

const evictionInterval = time.Minute

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "storefront-api").Logger()

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	repo, closeRepo, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("open client state storage")
	}
	defer closeRepo()

	registry := shopper.NewRegistry(repo, shopper.Options{
		BackendBaseURL: cfg.BackendBaseURL,
		HTTPClient:     &http.Client{Timeout: cfg.BackendTimeout},
		Locale:         cfg.Locale,
		ShareBaseURL:   cfg.ShareBaseURL,
		IdleTTL:        cfg.VisitorIdleTTL,
	}, logger)
	defer registry.Close()
	go registry.Run(ctx, evictionInterval)

	srv := httpserver.New(cfg.HTTPAddr, logger, httpserver.Deps{
		Registry:    registry,
		CORSOrigins: cfg.CORSOrigins,
	})

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Str("backend", cfg.BackendBaseURL).Msg("starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serverErr:
		logger.Error().Err(err).Msg("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		logger.Info().Msg("server stopped")
	}
}

// openStorage builds the client state repository for the configured driver.
func openStorage(ctx context.Context, cfg config.Config, logger zerolog.Logger) (clientstate.Repository, func(), error) {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pool, err := db.Connect(ctx, cfg.DBConnString, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := migrate.Apply(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return clientstate.NewPostgres(pool), pool.Close, nil
	case config.StorageRedis:
		rdb, err := clientstate.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}
		return clientstate.NewRedis(rdb, cfg.ClientStateTTL), closeFn, nil
	default:
		logger.Warn().Msg("using in-memory client state; sessions are lost on restart")
		return clientstate.NewMemory(), func() {}, nil
	}
}
