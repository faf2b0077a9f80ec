package service

import (
	"context"
	"fmt"
	"time"

	"code.cloudfoundry.org/clock"
	"go.uber.org/zap"

	"github.com/ardaweather/weather-dashboard/internal/models"
	"github.com/ardaweather/weather-dashboard/internal/observability"
	"github.com/ardaweather/weather-dashboard/internal/store"
	"github.com/ardaweather/weather-dashboard/internal/weather"
)

// Aggregator decides per city whether cached history is stale and must be
// refetched, merges fresh data with the cache, and filters by date range.
// Current and forecast are never cached; only the synthesized history is
// persisted, and only until it ages past the update interval.
type Aggregator struct {
	adapter        weather.Adapter
	cacheStore     store.Store
	updateInterval time.Duration
	historyWindow  time.Duration
	clk            clock.Clock
	logger         *zap.Logger
}

// NewAggregator constructs an Aggregator with explicit dependencies.
// updateInterval is the freshness window for cached history; historyWindow
// is how far back synthesized history reaches.
func NewAggregator(adapter weather.Adapter, cacheStore store.Store, updateInterval, historyWindow time.Duration, clk clock.Clock, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		adapter:        adapter,
		cacheStore:     cacheStore,
		updateInterval: updateInterval,
		historyWindow:  historyWindow,
		clk:            clk,
		logger:         logger,
	}
}

// GetCityView returns the merged current/forecast/history view for a city,
// with history filtered to [from, to]. When the cached history is stale (or
// forceRefresh is set) the full fetch-and-synthesize path runs and the
// result replaces the city's record wholesale. Current and forecast are
// refetched live on every call regardless of freshness.
//
// Any adapter failure fails the whole operation; nothing partial is cached
// or returned.
func (a *Aggregator) GetCityView(ctx context.Context, city string, from, to time.Time, forceRefresh bool) (models.CityView, error) {
	trigger := "search"
	if forceRefresh {
		trigger = "force"
	}
	return a.getCityView(ctx, city, from, to, forceRefresh, trigger, true)
}

// RefreshSelected re-runs the freshness path for the currently selected
// city. Used by the periodic background trigger; a no-op when no city has
// been selected yet.
func (a *Aggregator) RefreshSelected(ctx context.Context) error {
	city, err := a.cacheStore.LastCity(ctx)
	if err != nil {
		return err
	}
	if city == "" {
		return nil
	}
	now := a.clk.Now()
	_, err = a.getCityView(ctx, city, now.Add(-a.historyWindow), now, false, "scheduler", true)
	return err
}

// recordSelection controls whether the city becomes the remembered
// selection; warmup prefetches must not steal it.
func (a *Aggregator) getCityView(ctx context.Context, city string, from, to time.Time, forceRefresh bool, trigger string, recordSelection bool) (models.CityView, error) {
	key := store.NormalizeCity(city)

	stale, err := a.cacheStore.IsStale(ctx, key, a.updateInterval)
	if err != nil {
		return models.CityView{}, fmt.Errorf("freshness check for %s: %w", key, err)
	}
	needsUpdate := forceRefresh || stale

	var view models.CityView
	var history []models.WeatherSample

	if needsUpdate {
		current, err := a.adapter.FetchCurrent(ctx, key)
		if err != nil {
			return models.CityView{}, fmt.Errorf("city view for %s: %w", key, err)
		}
		forecast, err := a.adapter.FetchForecastWindow(ctx, key)
		if err != nil {
			return models.CityView{}, fmt.Errorf("city view for %s: %w", key, err)
		}
		now := a.clk.Now()
		history, err = a.adapter.SynthesizeHistory(ctx, key, now.Add(-a.historyWindow), now)
		if err != nil {
			return models.CityView{}, fmt.Errorf("city view for %s: %w", key, err)
		}
		// Full replace: anything previously cached outside the synthesis
		// window is discarded with the old record.
		if err := a.cacheStore.Put(ctx, key, history); err != nil {
			return models.CityView{}, fmt.Errorf("cache history for %s: %w", key, err)
		}
		observability.HistoryRefreshesTotal.WithLabelValues(trigger).Inc()
		observability.CityViewsTotal.WithLabelValues("refreshed").Inc()
		a.logger.Debug("history refreshed",
			zap.String("city", key),
			zap.String("trigger", trigger),
			zap.Int("samples", len(history)))
		view.Current = current
		view.Forecast = forecast
	} else {
		// Cached history is fresh, but instantaneous readings are cheap and
		// always wanted live.
		current, err := a.adapter.FetchCurrent(ctx, key)
		if err != nil {
			return models.CityView{}, fmt.Errorf("city view for %s: %w", key, err)
		}
		forecast, err := a.adapter.FetchForecastWindow(ctx, key)
		if err != nil {
			return models.CityView{}, fmt.Errorf("city view for %s: %w", key, err)
		}
		rec, ok, err := a.cacheStore.Get(ctx, key)
		if err != nil {
			return models.CityView{}, fmt.Errorf("cached history for %s: %w", key, err)
		}
		if ok {
			history = rec.Samples
		}
		observability.CityViewsTotal.WithLabelValues("fresh").Inc()
		a.logger.Debug("history served from cache", zap.String("city", key))
		view.Current = current
		view.Forecast = forecast
	}

	view.History = filterWindow(history, from, to)

	if recordSelection {
		if err := a.cacheStore.UpdateLastCity(ctx, city); err != nil {
			return models.CityView{}, fmt.Errorf("record last city %s: %w", key, err)
		}
	}
	return view, nil
}

// filterWindow keeps the samples whose time falls in [from, to], both
// bounds inclusive, preserving order.
func filterWindow(samples []models.WeatherSample, from, to time.Time) []models.WeatherSample {
	out := []models.WeatherSample{}
	for _, s := range samples {
		if s.Time.Before(from) || s.Time.After(to) {
			continue
		}
		out = append(out, s)
	}
	return out
}
