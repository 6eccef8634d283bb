package repository

import (
	"context"
	"fmt"
	"time"

	"flightwatch-service/internal/domain/entity"
	"flightwatch-service/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// storedEvent is the envelope written to the events collection
type storedEvent struct {
	ID         string    `bson:"_id"`
	EventType  string    `bson:"eventType"`
	OccurredOn time.Time `bson:"occurredOn"`
	Data       bson.Raw  `bson:"data"`
}

// MongoEventStore implements the EventStore interface as an append-only collection
type MongoEventStore struct {
	collection *mongo.Collection
}

// NewMongoEventStore creates a new MongoDB event store
func NewMongoEventStore(db *mongo.Database) repository.EventStore {
	collection := db.Collection("events")

	ctx := context.Background()

	typeIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "eventType", Value: 1},
			{Key: "occurredOn", Value: 1},
		},
	}

	occurredOnIndex := mongo.IndexModel{
		Keys: bson.M{"occurredOn": -1},
	}

	collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		typeIndex,
		occurredOnIndex,
	})

	return &MongoEventStore{
		collection: collection,
	}
}

// Save appends an event. Saving the same event ID twice is an error.
func (s *MongoEventStore) Save(ctx context.Context, event entity.DomainEvent) error {
	doc, err := encodeStoredEvent(event)
	if err != nil {
		return err
	}

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to save %s event: %w", event.EventType(), err)
	}
	return nil
}

// FindByType returns every stored event of the given type, oldest first
func (s *MongoEventStore) FindByType(ctx context.Context, eventType string) ([]entity.DomainEvent, error) {
	cursor, err := s.collection.Find(ctx, bson.M{"eventType": eventType}, &options.FindOptions{
		Sort: bson.D{{Key: "occurredOn", Value: 1}},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []storedEvent
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	events := make([]entity.DomainEvent, 0, len(docs))
	for _, doc := range docs {
		event, err := decodeStoredEvent(doc)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func encodeStoredEvent(event entity.DomainEvent) (*storedEvent, error) {
	data, err := bson.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", event.EventType(), err)
	}
	return &storedEvent{
		ID:         event.EventID(),
		EventType:  event.EventType(),
		OccurredOn: event.OccurredAt(),
		Data:       data,
	}, nil
}

func decodeStoredEvent(doc storedEvent) (entity.DomainEvent, error) {
	event, err := entity.NewDomainEvent(doc.EventType)
	if err != nil {
		return nil, err
	}
	if err := bson.Unmarshal(doc.Data, event); err != nil {
		return nil, fmt.Errorf("failed to decode event %s: %w", doc.ID, err)
	}
	return event, nil
}
