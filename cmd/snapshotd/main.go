package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"code.cloudfoundry.org/clock"
	"go.uber.org/zap"

	"github.com/ardaweather/weather-dashboard/internal/config"
	"github.com/ardaweather/weather-dashboard/internal/observability"
	"github.com/ardaweather/weather-dashboard/internal/snapshot"
	"github.com/ardaweather/weather-dashboard/internal/weather"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	clk := clock.NewClock()

	var repo snapshot.Repository
	switch cfg.SnapshotDBBackend {
	case "postgres":
		pg, err := snapshot.OpenPostgres(cfg.SnapshotPostgresDSN)
		if err != nil {
			logger.Fatal("postgres", zap.Error(err))
		}
		repo = pg
		logger.Info("snapshot backend: postgres")
	default:
		lite, err := snapshot.OpenSQLite(cfg.SnapshotSQLitePath)
		if err != nil {
			logger.Fatal("sqlite", zap.Error(err))
		}
		repo = lite
		logger.Info("snapshot backend: sqlite", zap.String("path", cfg.SnapshotSQLitePath))
	}

	adapter := weather.NewOpenMeteoAdapter(
		cfg.GeocodingURL,
		cfg.ForecastURL,
		cfg.ProviderTimeout,
		weather.NewRand(time.Now().UnixNano()),
		clk,
	)

	handler := snapshot.NewHandler(repo, adapter, clk, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.SnapshotPort,
		Handler:      snapshot.NewRouter(handler),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("snapshot server starting", zap.String("addr", ":"+cfg.SnapshotPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	if err := repo.Close(); err != nil {
		logger.Error("repository close", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
