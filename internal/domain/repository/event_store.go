package repository

import (
	"context"

	"flightwatch-service/internal/domain/entity"
)

// EventStore is the append-only domain event log
type EventStore interface {
	Save(ctx context.Context, event entity.DomainEvent) error
	FindByType(ctx context.Context, eventType string) ([]entity.DomainEvent, error)
}
