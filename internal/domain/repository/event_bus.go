package repository

import (
	"context"

	"flightwatch-service/internal/domain/entity"
)

// EventBus publishes integration events to the message bus
type EventBus interface {
	Publish(ctx context.Context, event entity.IntegrationEvent) error
}
