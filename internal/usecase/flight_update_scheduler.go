package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"flightwatch-service/internal/domain/entity"
	"flightwatch-service/internal/domain/repository"
	"flightwatch-service/pkg/logger"
	"flightwatch-service/pkg/metrics"

	"golang.org/x/sync/semaphore"
)

// SubscriptionUpdater runs one update for a subscription
type SubscriptionUpdater interface {
	UpdateSubscription(ctx context.Context, subscriptionID string) error
}

// SchedulerConfig holds the polling and backoff policy
type SchedulerConfig struct {
	PollInterval         time.Duration
	StartupDelay         time.Duration
	MaxConcurrency       int
	ErrorBackoffStep     time.Duration
	MaxErrorBackoff      time.Duration
	MaxConsecutiveErrors int
}

// FlightUpdateScheduler periodically updates every due subscription
type FlightUpdateScheduler struct {
	subscriptions repository.SubscriptionRepository
	updater       SubscriptionUpdater
	config        SchedulerConfig
	sem           *semaphore.Weighted
	logger        logger.Logger
	metrics       *metrics.Metrics

	// Now is the clock; tests replace it
	Now func() time.Time

	consecutiveErrors int
}

// NewFlightUpdateScheduler creates a new scheduler
func NewFlightUpdateScheduler(
	subscriptions repository.SubscriptionRepository,
	updater SubscriptionUpdater,
	config SchedulerConfig,
	logger logger.Logger,
	m *metrics.Metrics,
) *FlightUpdateScheduler {
	if config.MaxConcurrency < 1 {
		config.MaxConcurrency = 1
	}
	return &FlightUpdateScheduler{
		subscriptions: subscriptions,
		updater:       updater,
		config:        config,
		sem:           semaphore.NewWeighted(int64(config.MaxConcurrency)),
		logger:        logger,
		metrics:       m,
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

// Run blocks until ctx is cancelled, running one cycle per interval
func (s *FlightUpdateScheduler) Run(ctx context.Context) error {
	s.logger.Info("Flight update scheduler started", "maxConcurrency", s.config.MaxConcurrency)

	if err := sleep(ctx, s.config.StartupDelay); err != nil {
		s.logger.Info("Flight update scheduler stopped")
		return nil
	}

	for {
		delay := s.tick(ctx)
		if ctx.Err() != nil {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			break
		}
	}

	s.logger.Info("Flight update scheduler stopped")
	return nil
}

// tick runs one cycle and returns the delay before the next
func (s *FlightUpdateScheduler) tick(ctx context.Context) time.Duration {
	start := time.Now()
	err := s.runCycle(ctx)
	s.metrics.CycleDuration.Observe(time.Since(start).Seconds())

	if ctx.Err() != nil {
		return 0
	}

	if err != nil {
		s.consecutiveErrors++
		delay := s.nextDelay()
		s.metrics.SchedulerCycles.WithLabelValues("error").Inc()
		s.logger.Error("Error in flight update cycle",
			"consecutiveErrors", s.consecutiveErrors,
			"error", err)
		s.logger.Warn("Waiting before retry due to errors", "delay", delay.String())
		return delay
	}

	s.consecutiveErrors = 0
	s.metrics.SchedulerCycles.WithLabelValues("success").Inc()
	s.logger.Info("Completed subscription update cycle", "elapsedSeconds", time.Since(start).Seconds())
	return s.config.PollInterval
}

// nextDelay is the backoff after consecutiveErrors failed cycles
func (s *FlightUpdateScheduler) nextDelay() time.Duration {
	if s.consecutiveErrors >= s.config.MaxConsecutiveErrors {
		return s.config.MaxErrorBackoff
	}
	delay := s.config.ErrorBackoffStep * time.Duration(s.consecutiveErrors)
	if delay > s.config.MaxErrorBackoff {
		delay = s.config.MaxErrorBackoff
	}
	return delay
}

// runCycle dispatches every due subscription and waits for them to finish.
// Only a failure to list subscriptions is returned.
func (s *FlightUpdateScheduler) runCycle(ctx context.Context) error {
	subs, err := s.subscriptions.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active subscriptions: %w", err)
	}

	due := s.dueSubscriptions(subs)
	if len(due) == 0 {
		s.logger.Info("No subscriptions need updating at this time", "totalActive", len(subs))
		return nil
	}

	s.logger.Info("Updating subscriptions", "count", len(due), "totalActive", len(subs))

	var wg sync.WaitGroup
	for _, sub := range due {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			s.dispatch(ctx, id)
		}(sub.ID)
	}
	wg.Wait()

	return nil
}

func (s *FlightUpdateScheduler) dueSubscriptions(subs []*entity.FlightSubscription) []*entity.FlightSubscription {
	now := s.Now()
	due := make([]*entity.FlightSubscription, 0, len(subs))
	for _, sub := range subs {
		if sub.IsDue(now) {
			due = append(due, sub)
		}
	}
	return due
}

// dispatch updates one subscription while holding a concurrency slot
func (s *FlightUpdateScheduler) dispatch(ctx context.Context, subscriptionID string) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return
	}
	s.metrics.InFlightUpdates.Inc()
	defer func() {
		s.metrics.InFlightUpdates.Dec()
		s.sem.Release(1)
	}()

	defer func() {
		if r := recover(); r != nil {
			s.metrics.ErrorsCount.WithLabelValues("subscription_update_panic").Inc()
			s.logger.Error("Panic updating subscription", "subscriptionId", subscriptionID, "panic", r)
		}
	}()

	fresh, err := s.subscriptions.GetByID(ctx, subscriptionID)
	if err != nil && !errors.Is(err, repository.ErrSubscriptionNotFound) {
		s.logger.Error("Failed to reload subscription", "subscriptionId", subscriptionID, "error", err)
		return
	}
	if fresh == nil || !fresh.IsActive {
		s.logger.Info("Subscription is no longer active, skipping update", "subscriptionId", subscriptionID)
		return
	}
	if !fresh.IsDue(s.Now()) {
		s.logger.Info("Subscription was recently updated, skipping",
			"subscriptionId", subscriptionID,
			"intervalSeconds", fresh.UpdateIntervalSeconds)
		return
	}

	if err := s.updater.UpdateSubscription(ctx, subscriptionID); err != nil {
		s.logger.Warn("Failed to update subscription", "subscriptionId", subscriptionID, "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
