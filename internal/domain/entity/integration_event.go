package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Integration event type tags double as bus topic names
const (
	IntegrationTypeFlightDataUpdated         = "flight-data-updated"
	IntegrationTypeFlightSubscriptionCreated = "flight-subscription-created"
)

// IntegrationEvent is published on the message bus for delivery to one
// client connection, identified by RoutingKey.
type IntegrationEvent interface {
	EventID() string
	CreatedAt() time.Time
	EventType() string
	RoutingKey() string
	integrationEvent()
}

// IntegrationMeta carries the identity shared by every integration event
type IntegrationMeta struct {
	ID      string    `json:"eventId"`
	Created time.Time `json:"createdAt"`
}

func newIntegrationMeta(now time.Time) IntegrationMeta {
	return IntegrationMeta{ID: uuid.NewString(), Created: now.UTC()}
}

func (m IntegrationMeta) EventID() string      { return m.ID }
func (m IntegrationMeta) CreatedAt() time.Time { return m.Created }
func (m IntegrationMeta) integrationEvent()    {}

// FlightDataUpdatedIntegrationEvent carries the full flight list for a subscription
type FlightDataUpdatedIntegrationEvent struct {
	IntegrationMeta
	SubscriptionID string   `json:"subscriptionId"`
	ConnectionID   string   `json:"connectionId"`
	FlightCount    int      `json:"flightCount"`
	AreaName       string   `json:"areaName"`
	Flights        []Flight `json:"flights"`
}

func (*FlightDataUpdatedIntegrationEvent) EventType() string {
	return IntegrationTypeFlightDataUpdated
}

func (e *FlightDataUpdatedIntegrationEvent) RoutingKey() string { return e.ConnectionID }

// NewFlightDataUpdatedIntegrationEvent builds the published form of a fetch result
func NewFlightDataUpdatedIntegrationEvent(sub *FlightSubscription, flights []Flight, now time.Time) *FlightDataUpdatedIntegrationEvent {
	if flights == nil {
		flights = []Flight{}
	}
	return &FlightDataUpdatedIntegrationEvent{
		IntegrationMeta: newIntegrationMeta(now),
		SubscriptionID:  sub.ID,
		ConnectionID:    sub.ConnectionID,
		FlightCount:     len(flights),
		AreaName:        sub.AreaName,
		Flights:         flights,
	}
}

// FlightSubscriptionCreatedIntegrationEvent announces a subscription to its connection
type FlightSubscriptionCreatedIntegrationEvent struct {
	IntegrationMeta
	SubscriptionID string      `json:"subscriptionId"`
	ConnectionID   string      `json:"connectionId"`
	UserID         *string     `json:"userId,omitempty"`
	AreaName       string      `json:"areaName"`
	Area           BoundingBox `json:"area"`
}

func (*FlightSubscriptionCreatedIntegrationEvent) EventType() string {
	return IntegrationTypeFlightSubscriptionCreated
}

func (e *FlightSubscriptionCreatedIntegrationEvent) RoutingKey() string { return e.ConnectionID }

// NewFlightSubscriptionCreatedIntegrationEvent builds the published form of a new subscription
func NewFlightSubscriptionCreatedIntegrationEvent(sub *FlightSubscription, now time.Time) *FlightSubscriptionCreatedIntegrationEvent {
	return &FlightSubscriptionCreatedIntegrationEvent{
		IntegrationMeta: newIntegrationMeta(now),
		SubscriptionID:  sub.ID,
		ConnectionID:    sub.ConnectionID,
		UserID:          sub.UserID,
		AreaName:        sub.AreaName,
		Area:            sub.Area,
	}
}

var integrationEventFactories = map[string]func() IntegrationEvent{
	IntegrationTypeFlightDataUpdated:         func() IntegrationEvent { return &FlightDataUpdatedIntegrationEvent{} },
	IntegrationTypeFlightSubscriptionCreated: func() IntegrationEvent { return &FlightSubscriptionCreatedIntegrationEvent{} },
}

// NewIntegrationEvent returns an empty integration event for the given type tag
func NewIntegrationEvent(eventType string) (IntegrationEvent, error) {
	factory, ok := integrationEventFactories[eventType]
	if !ok {
		return nil, fmt.Errorf("unknown integration event type %q", eventType)
	}
	return factory(), nil
}

// IntegrationEventTypes lists every registered integration event tag
func IntegrationEventTypes() []string {
	return []string{IntegrationTypeFlightDataUpdated, IntegrationTypeFlightSubscriptionCreated}
}
