package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"flightwatch-service/internal/domain/apperror"
	"flightwatch-service/internal/domain/entity"
	"flightwatch-service/internal/domain/repository"
	"flightwatch-service/pkg/logger"

	"github.com/google/uuid"
)

// Cancellation reasons recorded on FlightSubscriptionCancelled
const (
	ReasonUnsubscribe = "unsubscribe"
	ReasonDisconnect  = "disconnect"
)

// UpdateTrigger queues an immediate update outside the polling cycle
type UpdateTrigger interface {
	Submit(subscriptionID string) bool
}

// SubscribeRequest describes the area a connection wants to watch
type SubscribeRequest struct {
	ConnectionID          string             `json:"connectionId"`
	UserID                *string            `json:"userId,omitempty"`
	AreaName              string             `json:"areaName"`
	Area                  entity.BoundingBox `json:"area"`
	UpdateIntervalSeconds int                `json:"updateIntervalSeconds"`
}

// SubscriptionService handles subscribe and unsubscribe commands
type SubscriptionService struct {
	subscriptions repository.SubscriptionRepository
	events        repository.EventStore
	bus           repository.EventBus
	trigger       UpdateTrigger
	logger        logger.Logger

	// Now is the clock; tests replace it
	Now func() time.Time
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(
	subscriptions repository.SubscriptionRepository,
	events repository.EventStore,
	bus repository.EventBus,
	trigger UpdateTrigger,
	logger logger.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		subscriptions: subscriptions,
		events:        events,
		bus:           bus,
		trigger:       trigger,
		logger:        logger,
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

// Validate checks a request and fills in defaults
func (r *SubscribeRequest) Validate() error {
	r.ConnectionID = strings.TrimSpace(r.ConnectionID)
	if r.ConnectionID == "" {
		return apperror.Validation("INVALID_CONNECTION", "Connection id is required")
	}
	if !r.Area.Valid() {
		return apperror.Validation("INVALID_AREA", "Bounding box is outside world bounds or inverted")
	}
	if r.UpdateIntervalSeconds == 0 {
		r.UpdateIntervalSeconds = entity.DefaultUpdateIntervalSeconds
	}
	if r.UpdateIntervalSeconds < entity.MinUpdateIntervalSeconds || r.UpdateIntervalSeconds > entity.MaxUpdateIntervalSeconds {
		return apperror.Validation("INVALID_INTERVAL", "Update interval must be between 30 and 600 seconds")
	}
	if strings.TrimSpace(r.AreaName) == "" {
		r.AreaName = entity.DefaultAreaName
	}
	return nil
}

// Subscribe replaces the connection's subscription with a new one and
// queues an immediate update for it
func (s *SubscriptionService) Subscribe(ctx context.Context, req SubscribeRequest) (*entity.FlightSubscription, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.subscriptions.GetByConnectionID(ctx, req.ConnectionID)
	switch {
	case err == nil:
		if err := s.subscriptions.DeleteByID(ctx, existing.ID); err != nil {
			return nil, apperror.Failure("SUBSCRIBE_ERROR", "Failed to replace subscription", err)
		}
	case !errors.Is(err, repository.ErrSubscriptionNotFound):
		return nil, apperror.Failure("SUBSCRIBE_ERROR", "Failed to load subscription", err)
	}

	now := s.Now()
	sub, err := s.subscriptions.Create(ctx, &entity.FlightSubscription{
		ID:                    uuid.NewString(),
		ConnectionID:          req.ConnectionID,
		UserID:                req.UserID,
		AreaName:              req.AreaName,
		Area:                  req.Area,
		UpdateIntervalSeconds: req.UpdateIntervalSeconds,
		IsActive:              true,
		CreatedAt:             now,
		LastUpdatedAt:         now,
	})
	if err != nil {
		return nil, apperror.Failure("SUBSCRIBE_ERROR", "Failed to create subscription", err)
	}

	log := s.logger.With("subscriptionId", sub.ID, "connectionId", sub.ConnectionID)
	log.Info("Flight subscription created", "areaName", sub.AreaName)

	if err := s.events.Save(ctx, entity.NewFlightSubscriptionCreated(sub, now)); err != nil {
		log.Error("Failed to record subscription event", "error", err)
		return nil, apperror.Failure("SUBSCRIBE_ERROR", "Failed to record subscription", err)
	}

	// The subscription exists either way; the created notification is best-effort
	if err := s.bus.Publish(ctx, entity.NewFlightSubscriptionCreatedIntegrationEvent(sub, now)); err != nil {
		log.Warn("Failed to publish subscription event", "error", err)
	}

	if !s.trigger.Submit(sub.ID) {
		log.Warn("Immediate update not queued, waiting for next cycle")
	}

	return sub, nil
}

// Unsubscribe removes the connection's subscription. It is a no-op when
// the connection has none.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, connectionID, reason string) error {
	sub, err := s.subscriptions.GetByConnectionID(ctx, connectionID)
	if err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			return nil
		}
		return apperror.Failure("UNSUBSCRIBE_ERROR", "Failed to remove subscription", err)
	}

	if err := s.subscriptions.DeleteByConnectionID(ctx, connectionID); err != nil {
		s.logger.Error("Error removing flight subscription", "connectionId", connectionID, "error", err)
		return apperror.Failure("UNSUBSCRIBE_ERROR", "Failed to remove subscription", err)
	}

	s.logger.Info("Flight subscription removed", "connectionId", connectionID, "subscriptionId", sub.ID, "reason", reason)

	if err := s.events.Save(ctx, entity.NewFlightSubscriptionCancelled(sub, reason, s.Now())); err != nil {
		s.logger.Error("Failed to record cancellation event", "subscriptionId", sub.ID, "error", err)
	}
	return nil
}

// PruneOrphans removes active subscriptions whose connection is not open.
// Connections live only in process memory, so after a restart every stored
// subscription is an orphan.
func (s *SubscriptionService) PruneOrphans(ctx context.Context, connected func(connectionID string) bool) (int, error) {
	subs, err := s.subscriptions.ListActive(ctx)
	if err != nil {
		return 0, apperror.Failure("PRUNE_ERROR", "Failed to list subscriptions", err)
	}

	pruned := 0
	for _, sub := range subs {
		if connected(sub.ConnectionID) {
			continue
		}
		if err := s.Unsubscribe(ctx, sub.ConnectionID, ReasonDisconnect); err != nil {
			s.logger.Warn("Failed to prune orphaned subscription", "subscriptionId", sub.ID, "error", err)
			continue
		}
		pruned++
	}
	return pruned, nil
}
