package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeFlightDataUpdated           = "FlightDataUpdated"
	EventTypeFlightSubscriptionCreated   = "FlightSubscriptionCreated"
	EventTypeFlightSubscriptionCancelled = "FlightSubscriptionCancelled"
)

// DomainEvent is an immutable record of something that happened.
// The set of implementations is closed to this package.
type DomainEvent interface {
	EventID() string
	OccurredAt() time.Time
	EventType() string
	domainEvent()
}

// EventMeta carries the identity shared by every domain event
type EventMeta struct {
	ID         string    `bson:"eventId" json:"eventId"`
	OccurredOn time.Time `bson:"occurredOn" json:"occurredOn"`
}

func newEventMeta(now time.Time) EventMeta {
	return EventMeta{ID: uuid.NewString(), OccurredOn: now.UTC()}
}

func (m EventMeta) EventID() string       { return m.ID }
func (m EventMeta) OccurredAt() time.Time { return m.OccurredOn }
func (m EventMeta) domainEvent()          {}

// FlightDataUpdated summarizes one successful fetch for a subscription
type FlightDataUpdated struct {
	EventMeta      `bson:",inline"`
	SubscriptionID string   `bson:"subscriptionId" json:"subscriptionId"`
	FlightCount    int      `bson:"flightCount" json:"flightCount"`
	FlightNumbers  []string `bson:"flightNumbers" json:"flightNumbers"`
	AreaName       string   `bson:"areaName" json:"areaName"`
}

func (*FlightDataUpdated) EventType() string { return EventTypeFlightDataUpdated }

// NewFlightDataUpdated builds the domain event for a fetch result
func NewFlightDataUpdated(sub *FlightSubscription, flights []Flight, now time.Time) *FlightDataUpdated {
	return &FlightDataUpdated{
		EventMeta:      newEventMeta(now),
		SubscriptionID: sub.ID,
		FlightCount:    len(flights),
		FlightNumbers:  FlightNumbers(flights),
		AreaName:       sub.AreaName,
	}
}

// FlightSubscriptionCreated records a new area subscription
type FlightSubscriptionCreated struct {
	EventMeta             `bson:",inline"`
	SubscriptionID        string      `bson:"subscriptionId" json:"subscriptionId"`
	ConnectionID          string      `bson:"connectionId" json:"connectionId"`
	UserID                *string     `bson:"userId,omitempty" json:"userId,omitempty"`
	AreaName              string      `bson:"areaName" json:"areaName"`
	Area                  BoundingBox `bson:"area" json:"area"`
	UpdateIntervalSeconds int         `bson:"updateIntervalSeconds" json:"updateIntervalSeconds"`
}

func (*FlightSubscriptionCreated) EventType() string { return EventTypeFlightSubscriptionCreated }

// NewFlightSubscriptionCreated builds the domain event for a created subscription
func NewFlightSubscriptionCreated(sub *FlightSubscription, now time.Time) *FlightSubscriptionCreated {
	return &FlightSubscriptionCreated{
		EventMeta:             newEventMeta(now),
		SubscriptionID:        sub.ID,
		ConnectionID:          sub.ConnectionID,
		UserID:                sub.UserID,
		AreaName:              sub.AreaName,
		Area:                  sub.Area,
		UpdateIntervalSeconds: sub.UpdateIntervalSeconds,
	}
}

// FlightSubscriptionCancelled records a removed subscription
type FlightSubscriptionCancelled struct {
	EventMeta      `bson:",inline"`
	SubscriptionID string `bson:"subscriptionId" json:"subscriptionId"`
	ConnectionID   string `bson:"connectionId" json:"connectionId"`
	Reason         string `bson:"reason" json:"reason"`
}

func (*FlightSubscriptionCancelled) EventType() string { return EventTypeFlightSubscriptionCancelled }

// NewFlightSubscriptionCancelled builds the domain event for a removed subscription
func NewFlightSubscriptionCancelled(sub *FlightSubscription, reason string, now time.Time) *FlightSubscriptionCancelled {
	return &FlightSubscriptionCancelled{
		EventMeta:      newEventMeta(now),
		SubscriptionID: sub.ID,
		ConnectionID:   sub.ConnectionID,
		Reason:         reason,
	}
}

var domainEventFactories = map[string]func() DomainEvent{
	EventTypeFlightDataUpdated:           func() DomainEvent { return &FlightDataUpdated{} },
	EventTypeFlightSubscriptionCreated:   func() DomainEvent { return &FlightSubscriptionCreated{} },
	EventTypeFlightSubscriptionCancelled: func() DomainEvent { return &FlightSubscriptionCancelled{} },
}

// NewDomainEvent returns an empty event for the given type tag, ready to be
// decoded into. Unknown tags are an error.
func NewDomainEvent(eventType string) (DomainEvent, error) {
	factory, ok := domainEventFactories[eventType]
	if !ok {
		return nil, fmt.Errorf("unknown domain event type %q", eventType)
	}
	return factory(), nil
}
