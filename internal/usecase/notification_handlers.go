package usecase

import (
	"context"
	"fmt"
	"time"

	"flightwatch-service/internal/domain/entity"
	"flightwatch-service/internal/domain/repository"
	"flightwatch-service/pkg/logger"
	"flightwatch-service/pkg/utils"
)

// FlightDataUpdatedNotification is the payload of a "FlightDataUpdated" notification
type FlightDataUpdatedNotification struct {
	SubscriptionID string          `json:"subscriptionId"`
	FlightCount    int             `json:"flightCount"`
	Flights        []entity.Flight `json:"flights"`
	Timestamp      time.Time       `json:"timestamp"`
}

// SubscriptionCreatedNotification is the payload of a "SubscriptionCreated" notification
type SubscriptionCreatedNotification struct {
	SubscriptionID string    `json:"subscriptionId"`
	AreaName       string    `json:"areaName"`
	Timestamp      time.Time `json:"timestamp"`
	Message        string    `json:"message"`
}

// FlightDataUpdatedHandler pushes fetched flights to the subscribing connection
type FlightDataUpdatedHandler struct {
	notifier repository.Notifier
	logger   logger.Logger
	now      func() time.Time
}

// NewFlightDataUpdatedHandler creates a new handler
func NewFlightDataUpdatedHandler(notifier repository.Notifier, logger logger.Logger) *FlightDataUpdatedHandler {
	return &FlightDataUpdatedHandler{
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CanHandle implements IntegrationEventHandler
func (h *FlightDataUpdatedHandler) CanHandle(eventType string) bool {
	return eventType == entity.IntegrationTypeFlightDataUpdated
}

// Handle implements IntegrationEventHandler
func (h *FlightDataUpdatedHandler) Handle(ctx context.Context, event entity.IntegrationEvent) error {
	e, ok := event.(*entity.FlightDataUpdatedIntegrationEvent)
	if !ok {
		return fmt.Errorf("unexpected event %T for %s", event, entity.IntegrationTypeFlightDataUpdated)
	}

	h.logger.Info("Processing FlightDataUpdated event",
		"subscriptionId", e.SubscriptionID,
		"flightCount", e.FlightCount)

	flights := make([]entity.Flight, len(e.Flights))
	for i, f := range e.Flights {
		f.CategoryDescription = utils.CategoryShort(f.Category)
		flights[i] = f
	}

	h.notifier.Notify(ctx, e.ConnectionID, NotificationFlightDataUpdated, FlightDataUpdatedNotification{
		SubscriptionID: e.SubscriptionID,
		FlightCount:    len(flights),
		Flights:        flights,
		Timestamp:      h.now(),
	})
	return nil
}

// SubscriptionCreatedHandler confirms a new subscription to its connection
type SubscriptionCreatedHandler struct {
	notifier repository.Notifier
	logger   logger.Logger
	now      func() time.Time
}

// NewSubscriptionCreatedHandler creates a new handler
func NewSubscriptionCreatedHandler(notifier repository.Notifier, logger logger.Logger) *SubscriptionCreatedHandler {
	return &SubscriptionCreatedHandler{
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CanHandle implements IntegrationEventHandler
func (h *SubscriptionCreatedHandler) CanHandle(eventType string) bool {
	return eventType == entity.IntegrationTypeFlightSubscriptionCreated
}

// Handle implements IntegrationEventHandler
func (h *SubscriptionCreatedHandler) Handle(ctx context.Context, event entity.IntegrationEvent) error {
	e, ok := event.(*entity.FlightSubscriptionCreatedIntegrationEvent)
	if !ok {
		return fmt.Errorf("unexpected event %T for %s", event, entity.IntegrationTypeFlightSubscriptionCreated)
	}

	h.logger.Info("Processing FlightSubscriptionCreated event",
		"subscriptionId", e.SubscriptionID,
		"areaName", e.AreaName)

	h.notifier.Notify(ctx, e.ConnectionID, NotificationSubscriptionCreated, SubscriptionCreatedNotification{
		SubscriptionID: e.SubscriptionID,
		AreaName:       e.AreaName,
		Timestamp:      h.now(),
		Message:        "Subscription created for area: " + e.AreaName,
	})
	return nil
}
