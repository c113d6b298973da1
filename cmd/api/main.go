package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"factoryplan/internal/api"
	"factoryplan/internal/buildinfo"
	"factoryplan/internal/config"
	"factoryplan/internal/metrics"
	"factoryplan/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.RegisterDefault()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	broker, closeBroker := openBroker(ctx, cfg, logger)
	defer closeBroker()

	srvDeps := api.NewServer(cfg, st, broker, logger)
	worker := srvDeps.NewWebhookWorker()
	worker.Start()
	defer close(worker.Stop)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srvDeps.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API listening", "addr", srv.Addr, "build", buildinfo.Info())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore uses Postgres when DATABASE_URL is set, else the in-memory store.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Info("using in-memory store")
		return store.NewMemory(), func() {}, nil
	}
	pg, err := store.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if cfg.DBMigrate {
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
	}
	logger.Info("using postgres store", "migrated", cfg.DBMigrate)
	return pg, func() { _ = pg.Close() }, nil
}

// openBroker uses Redis pub/sub when REDIS_URL is set and reachable, else the in-process broker.
func openBroker(ctx context.Context, cfg config.Config, logger *slog.Logger) (api.EventBroker, func()) {
	if cfg.RedisURL == "" {
		return api.NewBroker(), func() {}
	}
	rb, err := api.NewRedisBroker(cfg.RedisURL, logger)
	if err == nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err = rb.Ping(pingCtx)
		cancel()
		if err != nil {
			_ = rb.Close()
		}
	}
	if err != nil {
		logger.Warn("redis broker unavailable, using in-process broker", "err", err)
		return api.NewBroker(), func() {}
	}
	logger.Info("using redis broker")
	return rb, func() { _ = rb.Close() }
}
