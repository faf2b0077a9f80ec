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
	"golang.org/x/time/rate"

	"github.com/ardaweather/weather-dashboard/internal/auth"
	"github.com/ardaweather/weather-dashboard/internal/config"
	"github.com/ardaweather/weather-dashboard/internal/export"
	httphandler "github.com/ardaweather/weather-dashboard/internal/http"
	"github.com/ardaweather/weather-dashboard/internal/lifecycle"
	"github.com/ardaweather/weather-dashboard/internal/observability"
	"github.com/ardaweather/weather-dashboard/internal/scheduler"
	"github.com/ardaweather/weather-dashboard/internal/service"
	"github.com/ardaweather/weather-dashboard/internal/store"
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

	var cacheStore store.Store
	var memcacheCloser *store.MemcachedStore
	switch cfg.StoreBackend {
	case "memcached":
		mc, err := store.NewMemcachedStore(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns, cfg.Keys, cfg.Units, clk)
		if err != nil {
			logger.Fatal("memcached store", zap.Error(err))
		}
		memcacheCloser = mc
		cacheStore = mc
		logger.Info("store backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		fs, err := store.NewFileStore(cfg.DataDir, cfg.Keys, cfg.Units, clk)
		if err != nil {
			logger.Fatal("file store", zap.Error(err))
		}
		cacheStore = fs
		logger.Info("store backend: file", zap.String("dir", cfg.DataDir))
	}

	adapter := weather.NewOpenMeteoAdapter(
		cfg.GeocodingURL,
		cfg.ForecastURL,
		cfg.ProviderTimeout,
		weather.NewRand(time.Now().UnixNano()),
		clk,
	)

	historyWindow := time.Duration(cfg.HistoryDays) * 24 * time.Hour
	aggregator := service.NewAggregator(adapter, cacheStore, cfg.UpdateInterval, historyWindow, clk, logger)
	exporter := export.NewBuilder(cacheStore, cfg.Units, logger)
	authManager := auth.NewManager(cfg.AdminUsername, cfg.AdminPassword, cacheStore, logger)

	healthConfig := &httphandler.HealthConfig{}
	if memcacheCloser != nil {
		healthConfig.StorePing = memcacheCloser.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	handler := httphandler.NewHandler(aggregator, cacheStore, exporter, authManager, healthConfig, historyWindow, clk, logger)
	router := httphandler.NewRouter(handler, logger, limiter, cfg.ProviderTimeout*3)

	refresher := scheduler.New(aggregator, cfg.UpdateInterval, logger)
	if err := refresher.Start(); err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}

	if len(cfg.DefaultCities) > 0 {
		warmer := service.NewWarmer(aggregator, logger)
		go func() {
			warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer warmCancel()
			if err := warmer.Warm(warmCtx, cfg.DefaultCities); err != nil {
				logger.Warn("store warming failed", zap.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	refresher.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, 100*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
