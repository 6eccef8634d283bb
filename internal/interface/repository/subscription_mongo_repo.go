package repository

import (
	"context"
	"errors"
	"fmt"

	"flightwatch-service/internal/domain/entity"
	"flightwatch-service/internal/domain/repository"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSubscriptionRepository implements the SubscriptionRepository interface
type MongoSubscriptionRepository struct {
	collection *mongo.Collection
}

// NewMongoSubscriptionRepository creates a new MongoDB subscription repository
func NewMongoSubscriptionRepository(db *mongo.Database) repository.SubscriptionRepository {
	collection := db.Collection("flight_subscriptions")

	ctx := context.Background()

	// One subscription per connection
	connectionIndex := mongo.IndexModel{
		Keys:    bson.M{"connectionId": 1},
		Options: options.Index().SetUnique(true),
	}

	// Scheduler lists active subscriptions every cycle
	activeIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "isActive", Value: 1},
			{Key: "lastUpdatedAt", Value: 1},
		},
	}

	collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		connectionIndex,
		activeIndex,
	})

	return &MongoSubscriptionRepository{
		collection: collection,
	}
}

// GetByID finds a subscription by ID
func (r *MongoSubscriptionRepository) GetByID(ctx context.Context, id string) (*entity.FlightSubscription, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByConnectionID finds the subscription owned by a connection
func (r *MongoSubscriptionRepository) GetByConnectionID(ctx context.Context, connectionID string) (*entity.FlightSubscription, error) {
	return r.findOne(ctx, bson.M{"connectionId": connectionID})
}

func (r *MongoSubscriptionRepository) findOne(ctx context.Context, filter bson.M) (*entity.FlightSubscription, error) {
	var sub entity.FlightSubscription
	err := r.collection.FindOne(ctx, filter).Decode(&sub)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// ListActive returns every active subscription, least recently updated first
func (r *MongoSubscriptionRepository) ListActive(ctx context.Context) ([]*entity.FlightSubscription, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"isActive": true}, &options.FindOptions{
		Sort: bson.D{{Key: "lastUpdatedAt", Value: 1}},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var subs []*entity.FlightSubscription
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, err
	}

	return subs, nil
}

// Create inserts a subscription, assigning an ID when it has none
func (r *MongoSubscriptionRepository) Create(ctx context.Context, sub *entity.FlightSubscription) (*entity.FlightSubscription, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}

	if _, err := r.collection.InsertOne(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to insert subscription: %w", err)
	}
	return sub, nil
}

// Update replaces a stored subscription
func (r *MongoSubscriptionRepository) Update(ctx context.Context, sub *entity.FlightSubscription) error {
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": sub.ID}, sub)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrSubscriptionNotFound
	}
	return nil
}

// DeleteByID removes a subscription by ID
func (r *MongoSubscriptionRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// DeleteByConnectionID removes the subscription owned by a connection
func (r *MongoSubscriptionRepository) DeleteByConnectionID(ctx context.Context, connectionID string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"connectionId": connectionID})
	return err
}
