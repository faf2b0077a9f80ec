package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Warmer prefetches the default city list so first searches hit a warm
// cache. Prefetches never become the remembered selection.
type Warmer struct {
	aggregator *Aggregator
	logger     *zap.Logger
}

// NewWarmer creates a Warmer backed by the given aggregator.
func NewWarmer(aggregator *Aggregator, logger *zap.Logger) *Warmer {
	return &Warmer{aggregator: aggregator, logger: logger}
}

// Warm fetches each city concurrently. Returns an aggregated error if any
// city failed; the rest still land in the cache.
func (w *Warmer) Warm(ctx context.Context, cities []string) error {
	start := time.Now()
	if w.logger != nil {
		w.logger.Info("warming store", zap.Int("cities", len(cities)))
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(cities))
	for _, city := range cities {
		city := city
		wg.Add(1)
		go func() {
			defer wg.Done()
			now := w.aggregator.clk.Now()
			_, err := w.aggregator.getCityView(ctx, city, now.Add(-w.aggregator.historyWindow), now, false, "warmup", false)
			if err != nil {
				errCh <- fmt.Errorf("warm %s: %w", city, err)
			}
		}()
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if w.logger != nil {
		w.logger.Info("store warming complete",
			zap.Int("cities", len(cities)),
			zap.Int("errors", len(errs)),
			zap.Float64("duration_seconds", time.Since(start).Seconds()))
	}
	if len(errs) > 0 {
		return fmt.Errorf("store warming: %v", errs)
	}
	return nil
}
