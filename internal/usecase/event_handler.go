package usecase

import (
	"context"

	"flightwatch-service/internal/domain/entity"
)

// IntegrationEventHandler defines the interface for integration event handlers
type IntegrationEventHandler interface {
	// CanHandle determines if this handler can process the given event type
	CanHandle(eventType string) bool

	// Handle delivers the event
	Handle(ctx context.Context, event entity.IntegrationEvent) error
}

// EventRouter routes integration events to the appropriate handler by type
type EventRouter interface {
	// Register registers a handler
	Register(handler IntegrationEventHandler)

	// GetHandler returns the appropriate handler for a given event type
	GetHandler(eventType string) IntegrationEventHandler
}
