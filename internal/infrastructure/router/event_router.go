package router

import (
	"context"
	"fmt"

	"flightwatch-service/internal/domain/entity"
	"flightwatch-service/internal/usecase"
	"flightwatch-service/pkg/logger"
)

// EventRouter routes integration events to appropriate handlers based on event type
type EventRouter struct {
	handlers []usecase.IntegrationEventHandler
	logger   logger.Logger
}

var _ usecase.EventRouter = (*EventRouter)(nil)

// NewEventRouter creates a new event router
func NewEventRouter(logger logger.Logger) *EventRouter {
	return &EventRouter{
		handlers: make([]usecase.IntegrationEventHandler, 0),
		logger:   logger,
	}
}

// Register registers a handler
func (r *EventRouter) Register(handler usecase.IntegrationEventHandler) {
	r.handlers = append(r.handlers, handler)
	r.logger.Info("Registered handler", "handler", fmt.Sprintf("%T", handler))
}

// GetHandler returns the appropriate handler for a given event type
func (r *EventRouter) GetHandler(eventType string) usecase.IntegrationEventHandler {
	for _, handler := range r.handlers {
		if handler.CanHandle(eventType) {
			return handler
		}
	}
	return nil
}

// Dispatch hands a consumed event to its handler. Events without a handler are skipped.
func (r *EventRouter) Dispatch(ctx context.Context, event entity.IntegrationEvent) error {
	handler := r.GetHandler(event.EventType())
	if handler == nil {
		r.logger.Warn("No handler found for event", "eventType", event.EventType(), "eventId", event.EventID())
		return nil
	}
	return handler.Handle(ctx, event)
}
