package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"flightwatch-service/internal/domain/entity"
)

// Envelope is the wire form of an integration event on either bus
type Envelope struct {
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	CreatedAt  time.Time       `json:"createdAt"`
	RoutingKey string          `json:"routingKey"`
	Payload    json.RawMessage `json:"payload"`
}

// Encode wraps an integration event in an envelope
func Encode(event entity.IntegrationEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event.EventType(), err)
	}
	return json.Marshal(Envelope{
		EventID:    event.EventID(),
		EventType:  event.EventType(),
		CreatedAt:  event.CreatedAt(),
		RoutingKey: event.RoutingKey(),
		Payload:    payload,
	})
}

// Decode unwraps an envelope into its concrete integration event
func Decode(data []byte) (entity.IntegrationEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	event, err := entity.NewIntegrationEvent(env.EventType)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(env.Payload, event); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.EventType, err)
	}
	return event, nil
}
