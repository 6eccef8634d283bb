package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"flightwatch-service/internal/domain/entity"
	"flightwatch-service/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	subscriptionKeyPrefix = "flightwatch:subscription:"
	connectionKeyPrefix   = "flightwatch:connection:"
	activeSetKey          = "flightwatch:subscriptions:active"
)

// RedisSubscriptionRepository stores each subscription as a JSON document,
// with a connection-to-ID index key and a set of active IDs
type RedisSubscriptionRepository struct {
	client *redis.Client
}

// NewRedisSubscriptionRepository creates a new Redis subscription repository
func NewRedisSubscriptionRepository(client *redis.Client) repository.SubscriptionRepository {
	return &RedisSubscriptionRepository{client: client}
}

func subscriptionKey(id string) string {
	return subscriptionKeyPrefix + id
}

func connectionKey(connectionID string) string {
	return connectionKeyPrefix + connectionID
}

// GetByID finds a subscription by ID
func (r *RedisSubscriptionRepository) GetByID(ctx context.Context, id string) (*entity.FlightSubscription, error) {
	raw, err := r.client.Get(ctx, subscriptionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return decodeSubscription(raw)
}

// GetByConnectionID finds the subscription owned by a connection
func (r *RedisSubscriptionRepository) GetByConnectionID(ctx context.Context, connectionID string) (*entity.FlightSubscription, error) {
	id, err := r.client.Get(ctx, connectionKey(connectionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// ListActive returns every active subscription. IDs whose document has
// disappeared are skipped.
func (r *RedisSubscriptionRepository) ListActive(ctx context.Context) ([]*entity.FlightSubscription, error) {
	ids, err := r.client.SMembers(ctx, activeSetKey).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = subscriptionKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	subs := make([]*entity.FlightSubscription, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		sub, err := decodeSubscription([]byte(s))
		if err != nil {
			return nil, err
		}
		if sub.IsActive {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

// Create stores a subscription, assigning an ID when it has none
func (r *RedisSubscriptionRepository) Create(ctx context.Context, sub *entity.FlightSubscription) (*entity.FlightSubscription, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if err := r.write(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to store subscription: %w", err)
	}
	return sub, nil
}

// Update replaces a stored subscription
func (r *RedisSubscriptionRepository) Update(ctx context.Context, sub *entity.FlightSubscription) error {
	n, err := r.client.Exists(ctx, subscriptionKey(sub.ID)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrSubscriptionNotFound
	}
	return r.write(ctx, sub)
}

func (r *RedisSubscriptionRepository) write(ctx context.Context, sub *entity.FlightSubscription) error {
	raw, err := json.Marshal(sub)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, subscriptionKey(sub.ID), raw, 0)
		pipe.Set(ctx, connectionKey(sub.ConnectionID), sub.ID, 0)
		if sub.IsActive {
			pipe.SAdd(ctx, activeSetKey, sub.ID)
		} else {
			pipe.SRem(ctx, activeSetKey, sub.ID)
		}
		return nil
	})
	return err
}

// DeleteByID removes a subscription by ID
func (r *RedisSubscriptionRepository) DeleteByID(ctx context.Context, id string) error {
	sub, err := r.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			return nil
		}
		return err
	}
	return r.remove(ctx, sub)
}

// DeleteByConnectionID removes the subscription owned by a connection
func (r *RedisSubscriptionRepository) DeleteByConnectionID(ctx context.Context, connectionID string) error {
	sub, err := r.GetByConnectionID(ctx, connectionID)
	if err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			return r.client.Del(ctx, connectionKey(connectionID)).Err()
		}
		return err
	}
	return r.remove(ctx, sub)
}

func (r *RedisSubscriptionRepository) remove(ctx context.Context, sub *entity.FlightSubscription) error {
	indexed, err := r.client.Get(ctx, connectionKey(sub.ConnectionID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, subscriptionKey(sub.ID))
		pipe.SRem(ctx, activeSetKey, sub.ID)
		// the connection may already point at a newer subscription
		if indexed == sub.ID {
			pipe.Del(ctx, connectionKey(sub.ConnectionID))
		}
		return nil
	})
	return err
}

func decodeSubscription(raw []byte) (*entity.FlightSubscription, error) {
	var sub entity.FlightSubscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("failed to decode subscription: %w", err)
	}
	return &sub, nil
}
