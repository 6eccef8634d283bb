package repository

import (
	"context"
	"errors"

	"flightwatch-service/internal/domain/entity"
)

// ErrSubscriptionNotFound is returned by lookups that match no subscription
var ErrSubscriptionNotFound = errors.New("subscription not found")

// SubscriptionRepository stores area subscriptions keyed by id and by connection id
type SubscriptionRepository interface {
	GetByID(ctx context.Context, id string) (*entity.FlightSubscription, error)
	GetByConnectionID(ctx context.Context, connectionID string) (*entity.FlightSubscription, error)
	ListActive(ctx context.Context) ([]*entity.FlightSubscription, error)
	Create(ctx context.Context, subscription *entity.FlightSubscription) (*entity.FlightSubscription, error)
	Update(ctx context.Context, subscription *entity.FlightSubscription) error
	DeleteByID(ctx context.Context, id string) error
	DeleteByConnectionID(ctx context.Context, connectionID string) error
}
