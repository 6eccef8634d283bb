package router

import (
	"context"
	"testing"
	"time"

	"flightwatch-service/internal/domain/entity"
	"flightwatch-service/internal/usecase"
	"flightwatch-service/pkg/logger"
)

type sentNotification struct {
	connectionID string
	event        string
	payload      interface{}
}

type recordingNotifier struct {
	sent []sentNotification
}

func (n *recordingNotifier) Notify(ctx context.Context, connectionID, eventName string, payload interface{}) {
	n.sent = append(n.sent, sentNotification{connectionID, eventName, payload})
}

func newRouter(n *recordingNotifier) *EventRouter {
	log := logger.NewNopLogger()
	r := NewEventRouter(log)
	r.Register(usecase.NewFlightDataUpdatedHandler(n, log))
	r.Register(usecase.NewSubscriptionCreatedHandler(n, log))
	return r
}

func TestGetHandler(t *testing.T) {
	r := newRouter(&recordingNotifier{})

	if _, ok := r.GetHandler(entity.IntegrationTypeFlightDataUpdated).(*usecase.FlightDataUpdatedHandler); !ok {
		t.Error("flight-data-updated not routed to FlightDataUpdatedHandler")
	}
	if _, ok := r.GetHandler(entity.IntegrationTypeFlightSubscriptionCreated).(*usecase.SubscriptionCreatedHandler); !ok {
		t.Error("flight-subscription-created not routed to SubscriptionCreatedHandler")
	}
	if h := r.GetHandler("unknown"); h != nil {
		t.Errorf("unknown type routed to %T", h)
	}
}

func TestDispatchNotifiesConnection(t *testing.T) {
	n := &recordingNotifier{}
	r := newRouter(n)

	cat := 3
	sub := &entity.FlightSubscription{ID: "sub-1", ConnectionID: "conn-1", AreaName: "Lisbon"}
	flights := []entity.Flight{{FlightNumber: "TAP123", Category: &cat}}

	if err := r.Dispatch(context.Background(), entity.NewFlightDataUpdatedIntegrationEvent(sub, flights, time.Now())); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := r.Dispatch(context.Background(), entity.NewFlightSubscriptionCreatedIntegrationEvent(sub, time.Now())); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(n.sent) != 2 {
		t.Fatalf("notifications = %d, want 2", len(n.sent))
	}

	first := n.sent[0]
	if first.connectionID != "conn-1" || first.event != usecase.NotificationFlightDataUpdated {
		t.Errorf("first notification = %+v", first)
	}
	updated, ok := first.payload.(usecase.FlightDataUpdatedNotification)
	if !ok {
		t.Fatalf("payload %T", first.payload)
	}
	if updated.FlightCount != 1 || updated.SubscriptionID != "sub-1" {
		t.Errorf("payload = %+v", updated)
	}
	if d := updated.Flights[0].CategoryDescription; d == nil || *d != "Small" {
		t.Errorf("category description = %v", d)
	}

	created, ok := n.sent[1].payload.(usecase.SubscriptionCreatedNotification)
	if !ok {
		t.Fatalf("payload %T", n.sent[1].payload)
	}
	if created.Message != "Subscription created for area: Lisbon" {
		t.Errorf("message = %q", created.Message)
	}
}
