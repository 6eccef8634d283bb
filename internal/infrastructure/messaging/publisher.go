package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flightwatch-service/internal/domain/apperror"
	"flightwatch-service/internal/domain/entity"
	"flightwatch-service/internal/domain/repository"
	"flightwatch-service/pkg/logger"
	"flightwatch-service/pkg/metrics"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const busServiceName = "message-bus"

// PublisherPolicy configures retry, circuit breaking and rate limiting.
// A message is sent at most 1+RetryLimit times; the n-th retry waits
// RetryInitial + (n-1)*RetryIncrement.
type PublisherPolicy struct {
	RetryLimit             int
	RetryInitial           time.Duration
	RetryIncrement         time.Duration
	BreakerTrackingPeriod  time.Duration
	BreakerTripThreshold   int
	BreakerActiveThreshold int
	BreakerResetInterval   time.Duration
	RateLimit              int
}

// ResilientPublisher publishes integration events through a Transport
type ResilientPublisher struct {
	transport Transport
	policy    PublisherPolicy
	breaker   *gobreaker.CircuitBreaker
	limiter   *rate.Limiter
	logger    logger.Logger
	metrics   *metrics.Metrics
}

var _ repository.EventBus = (*ResilientPublisher)(nil)

// NewResilientPublisher creates a new publisher
func NewResilientPublisher(transport Transport, policy PublisherPolicy, logger logger.Logger, m *metrics.Metrics) *ResilientPublisher {
	p := &ResilientPublisher{
		transport: transport,
		policy:    policy,
		logger:    logger,
		metrics:   m,
	}

	limit := rate.Inf
	burst := 0
	if policy.RateLimit > 0 {
		limit = rate.Limit(policy.RateLimit)
		burst = policy.RateLimit
	}
	p.limiter = rate.NewLimiter(limit, burst)

	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     busServiceName,
		Interval: policy.BreakerTrackingPeriod,
		Timeout:  policy.BreakerResetInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= uint32(policy.BreakerActiveThreshold) &&
				counts.TotalFailures >= uint32(policy.BreakerTripThreshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return p
}

// Publish encodes and sends an event, retrying transient failures.
// It gives up early when the circuit is open or ctx ends.
func (p *ResilientPublisher) Publish(ctx context.Context, event entity.IntegrationEvent) error {
	eventType := event.EventType()

	payload, err := Encode(event)
	if err != nil {
		p.metrics.EventsPublished.WithLabelValues(eventType, "encode_error").Inc()
		return apperror.Failure("EVENT_ENCODE_ERROR", "Failed to encode integration event", err)
	}

	var lastErr error
	for attempt := 0; attempt <= p.policy.RetryLimit; attempt++ {
		if attempt > 0 {
			delay := p.retryDelay(attempt)
			p.logger.Warn("Retrying event publish",
				"eventType", eventType,
				"eventId", event.EventID(),
				"attempt", attempt,
				"delay", delay.String(),
				"error", lastErr)

			if err := sleep(ctx, delay); err != nil {
				p.metrics.EventsPublished.WithLabelValues(eventType, "cancelled").Inc()
				return apperror.ExternalService(busServiceName, "EVENT_BUS_ERROR", "Event publish cancelled", 0, lastErr)
			}
		}

		// every send, retries included, spends rate budget
		if err := p.limiter.Wait(ctx); err != nil {
			p.metrics.EventsPublished.WithLabelValues(eventType, "cancelled").Inc()
			return apperror.ExternalService(busServiceName, "EVENT_BUS_ERROR", "Publish rate limit wait aborted", 0, err)
		}

		_, lastErr = p.breaker.Execute(func() (interface{}, error) {
			return nil, p.transport.Send(ctx, eventType, event.RoutingKey(), payload)
		})
		if lastErr == nil {
			p.metrics.EventsPublished.WithLabelValues(eventType, "success").Inc()
			p.logger.Debug("Published integration event", "eventType", eventType, "eventId", event.EventID())
			return nil
		}

		if errors.Is(lastErr, gobreaker.ErrOpenState) || errors.Is(lastErr, gobreaker.ErrTooManyRequests) {
			p.metrics.EventsPublished.WithLabelValues(eventType, "circuit_open").Inc()
			p.logger.Error("Message bus circuit open, event not published", "eventType", eventType, "eventId", event.EventID())
			return apperror.ExternalService(busServiceName, "EVENT_BUS_UNAVAILABLE", "Message bus circuit is open", 0, lastErr)
		}
	}

	p.metrics.EventsPublished.WithLabelValues(eventType, "error").Inc()
	p.logger.Error("Failed to publish integration event", "eventType", eventType, "eventId", event.EventID(), "error", lastErr)
	return apperror.ExternalService(busServiceName, "EVENT_BUS_ERROR",
		fmt.Sprintf("Failed to publish %s after %d attempts", eventType, p.policy.RetryLimit+1), 0, lastErr)
}

// BreakerState reports the circuit breaker state
func (p *ResilientPublisher) BreakerState() gobreaker.State {
	return p.breaker.State()
}

// Close closes the underlying transport
func (p *ResilientPublisher) Close() error {
	return p.transport.Close()
}

func (p *ResilientPublisher) retryDelay(attempt int) time.Duration {
	return p.policy.RetryInitial + time.Duration(attempt-1)*p.policy.RetryIncrement
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
