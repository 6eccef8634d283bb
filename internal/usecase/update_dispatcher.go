package usecase

import (
	"context"
	"sync"

	"flightwatch-service/internal/domain/apperror"
	"flightwatch-service/pkg/logger"
)

// UpdateDispatcher runs immediate subscription updates on a small worker pool
type UpdateDispatcher struct {
	updater SubscriptionUpdater
	workers int
	jobs    chan string
	logger  logger.Logger
	wg      sync.WaitGroup
}

var _ UpdateTrigger = (*UpdateDispatcher)(nil)

// NewUpdateDispatcher creates a dispatcher with a bounded job queue
func NewUpdateDispatcher(updater SubscriptionUpdater, workers, queueSize int, logger logger.Logger) *UpdateDispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &UpdateDispatcher{
		updater: updater,
		workers: workers,
		jobs:    make(chan string, queueSize),
		logger:  logger,
	}
}

// Start launches the workers; they stop when ctx is cancelled
func (d *UpdateDispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(ctx, i)
	}
	d.logger.Info("Update dispatcher started", "workers", d.workers)
}

// Wait blocks until every worker has stopped
func (d *UpdateDispatcher) Wait() {
	d.wg.Wait()
}

// Submit queues an update without blocking. It reports false when the queue is full.
func (d *UpdateDispatcher) Submit(subscriptionID string) bool {
	select {
	case d.jobs <- subscriptionID:
		return true
	default:
		d.logger.Warn("Update queue full, dropping immediate update", "subscriptionId", subscriptionID)
		return false
	}
}

func (d *UpdateDispatcher) work(ctx context.Context, worker int) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-d.jobs:
			d.run(ctx, worker, id)
		}
	}
}

func (d *UpdateDispatcher) run(ctx context.Context, worker int, subscriptionID string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Panic during immediate update", "worker", worker, "subscriptionId", subscriptionID, "panic", r)
		}
	}()

	log := d.logger.With("worker", worker, "subscriptionId", subscriptionID)
	log.Info("Fetching initial flight data for subscription")

	err := d.updater.UpdateSubscription(ctx, subscriptionID)
	switch {
	case err == nil:
		log.Info("Initial flight data fetched successfully")
	case apperror.Is(err, apperror.KindConflict):
		log.Debug("Subscription already updating, immediate update skipped")
	default:
		log.Warn("Failed to fetch initial flight data", "error", err)
	}
}
