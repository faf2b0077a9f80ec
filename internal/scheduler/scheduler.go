// Package scheduler runs the periodic background refresh of the selected
// city so its cached history never ages far past the update interval.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/ardaweather/weather-dashboard/internal/service"
)

// Scheduler periodically refreshes the last selected city.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	aggregator *service.Aggregator
	interval   time.Duration
	jobTimeout time.Duration
	logger     *zap.Logger
}

// New creates a Scheduler that refreshes every interval.
func New(aggregator *service.Aggregator, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		aggregator: aggregator,
		interval:   interval,
		jobTimeout: 30 * time.Second,
		logger:     logger,
	}
}

// Start schedules the refresh job and starts the underlying scheduler.
// Failures are logged and swallowed; the next tick tries again.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()

		if err := s.aggregator.RefreshSelected(ctx); err != nil {
			s.logger.Warn("scheduled refresh failed", zap.Error(err))
			return
		}
		s.logger.Debug("scheduled refresh completed")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("background refresh started", zap.Duration("interval", s.interval))
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
