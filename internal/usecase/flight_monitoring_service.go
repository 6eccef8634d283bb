package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"flightwatch-service/internal/domain/apperror"
	"flightwatch-service/internal/domain/entity"
	"flightwatch-service/internal/domain/repository"
	"flightwatch-service/pkg/logger"
	"flightwatch-service/pkg/metrics"
)

// Notification event names delivered to client connections
const (
	NotificationError               = "Error"
	NotificationSubscriptionCreated = "SubscriptionCreated"
	NotificationFlightDataUpdated   = "FlightDataUpdated"
)

// ErrorNotification is the payload of an "Error" notification
type ErrorNotification struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// FlightMonitoringService fetches flights for subscriptions and publishes the results
type FlightMonitoringService struct {
	subscriptions repository.SubscriptionRepository
	provider      repository.FlightProvider
	events        repository.EventStore
	bus           repository.EventBus
	notifier      repository.Notifier
	logger        logger.Logger
	metrics       *metrics.Metrics

	// Now is the clock; tests replace it
	Now func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewFlightMonitoringService creates a new flight monitoring service
func NewFlightMonitoringService(
	subscriptions repository.SubscriptionRepository,
	provider repository.FlightProvider,
	events repository.EventStore,
	bus repository.EventBus,
	notifier repository.Notifier,
	logger logger.Logger,
	m *metrics.Metrics,
) *FlightMonitoringService {
	return &FlightMonitoringService{
		subscriptions: subscriptions,
		provider:      provider,
		events:        events,
		bus:           bus,
		notifier:      notifier,
		logger:        logger,
		metrics:       m,
		Now:           func() time.Time { return time.Now().UTC() },
		inFlight:      make(map[string]struct{}),
	}
}

// UpdateSubscription runs one fetch-record-publish-persist cycle for a
// subscription. A second update of the same subscription while one is
// running returns a Conflict error without fetching.
func (s *FlightMonitoringService) UpdateSubscription(ctx context.Context, subscriptionID string) error {
	if !s.acquire(subscriptionID) {
		s.metrics.SubscriptionUpdates.WithLabelValues("conflict").Inc()
		return apperror.Conflict("UPDATE_IN_PROGRESS", "Subscription update already in progress")
	}
	defer s.release(subscriptionID)

	err := s.update(ctx, subscriptionID)
	s.metrics.SubscriptionUpdates.WithLabelValues(outcome(err)).Inc()
	return err
}

func (s *FlightMonitoringService) update(ctx context.Context, subscriptionID string) error {
	sub, err := s.subscriptions.GetByID(ctx, subscriptionID)
	if err != nil && !errors.Is(err, repository.ErrSubscriptionNotFound) {
		s.logger.Error("Error loading subscription", "subscriptionId", subscriptionID, "error", err)
		return apperror.Failure("UPDATE_ERROR", "Failed to update flights", err)
	}
	if sub == nil || !sub.IsActive {
		return apperror.NotFound("SUBSCRIPTION_NOT_FOUND", "Subscription not found or inactive")
	}

	log := s.logger.With("subscriptionId", sub.ID, "connectionId", sub.ConnectionID)

	flights, err := s.provider.FetchByBoundingBox(ctx, sub.Area)
	if err != nil {
		log.Warn("Failed to fetch flights for subscription", "error", err)
		s.notifier.Notify(ctx, sub.ConnectionID, NotificationError, ErrorNotification{
			Message:   apperror.Message(err),
			Timestamp: s.Now(),
		})
		return err
	}

	log.Info("Retrieved flights for area", "flightCount", len(flights), "areaName", sub.AreaName)

	now := s.Now()

	if err := s.events.Save(ctx, entity.NewFlightDataUpdated(sub, flights, now)); err != nil {
		log.Error("Failed to record flight data event", "error", err)
		return apperror.Failure("UPDATE_ERROR", "Failed to update flights", err)
	}

	if err := s.bus.Publish(ctx, entity.NewFlightDataUpdatedIntegrationEvent(sub, flights, now)); err != nil {
		log.Error("Failed to publish flight data event", "error", err)
		return err
	}

	sub.LastUpdatedAt = now
	if err := s.subscriptions.Update(ctx, sub); err != nil {
		log.Error("Failed to persist subscription timestamp", "error", err)
		return apperror.Failure("UPDATE_ERROR", "Failed to update flights", err)
	}

	log.Info("Flight update event published", "flightCount", len(flights))
	return nil
}

func (s *FlightMonitoringService) acquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *FlightMonitoringService) release(id string) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
}

// FetchAll returns every airborne flight
func (s *FlightMonitoringService) FetchAll(ctx context.Context) ([]entity.Flight, error) {
	return s.provider.FetchAll(ctx)
}

// FetchByArea returns airborne flights inside area
func (s *FlightMonitoringService) FetchByArea(ctx context.Context, area entity.BoundingBox) ([]entity.Flight, error) {
	if !area.Valid() {
		return nil, apperror.Validation("INVALID_AREA", "Bounding box is outside world bounds or inverted")
	}
	return s.provider.FetchByBoundingBox(ctx, area)
}

// FetchByCountry returns airborne flights whose origin country matches, ignoring case
func (s *FlightMonitoringService) FetchByCountry(ctx context.Context, country string) ([]entity.Flight, error) {
	country = strings.TrimSpace(country)
	if country == "" {
		return nil, apperror.Validation("INVALID_COUNTRY", "Country is required")
	}

	flights, err := s.provider.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]entity.Flight, 0)
	for _, f := range flights {
		if strings.EqualFold(f.Airline, country) {
			filtered = append(filtered, f)
		}
	}

	s.logger.Info("Found flights from country", "count", len(filtered), "country", country)
	return filtered, nil
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return apperror.KindOf(err).String()
}
