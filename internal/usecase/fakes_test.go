package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"

	"flightwatch-service/internal/domain/entity"
	"flightwatch-service/internal/domain/repository"
	"flightwatch-service/pkg/logger"
	"flightwatch-service/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

func testMetrics() *metrics.Metrics {
	return metrics.NewMetrics("test", prometheus.NewRegistry())
}

func nopLogger() logger.Logger {
	return logger.NewNopLogger()
}

type memorySubscriptions struct {
	mu      sync.Mutex
	byID    map[string]entity.FlightSubscription
	listErr error
}

func newMemorySubscriptions(subs ...*entity.FlightSubscription) *memorySubscriptions {
	r := &memorySubscriptions{byID: make(map[string]entity.FlightSubscription)}
	for _, s := range subs {
		r.byID[s.ID] = *s
	}
	return r
}

func (r *memorySubscriptions) get(id string) (entity.FlightSubscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	return s, ok
}

func (r *memorySubscriptions) GetByID(ctx context.Context, id string) (*entity.FlightSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrSubscriptionNotFound
	}
	return &s, nil
}

func (r *memorySubscriptions) GetByConnectionID(ctx context.Context, connectionID string) (*entity.FlightSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if s.ConnectionID == connectionID {
			s := s
			return &s, nil
		}
	}
	return nil, repository.ErrSubscriptionNotFound
}

func (r *memorySubscriptions) ListActive(ctx context.Context) ([]*entity.FlightSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]*entity.FlightSubscription, 0, len(r.byID))
	for _, s := range r.byID {
		if s.IsActive {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memorySubscriptions) Create(ctx context.Context, sub *entity.FlightSubscription) (*entity.FlightSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[sub.ID]; exists {
		return nil, errors.New("duplicate id")
	}
	r.byID[sub.ID] = *sub
	return sub, nil
}

func (r *memorySubscriptions) Update(ctx context.Context, sub *entity.FlightSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[sub.ID]; !ok {
		return repository.ErrSubscriptionNotFound
	}
	r.byID[sub.ID] = *sub
	return nil
}

func (r *memorySubscriptions) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}

func (r *memorySubscriptions) DeleteByConnectionID(ctx context.Context, connectionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.byID {
		if s.ConnectionID == connectionID {
			delete(r.byID, id)
		}
	}
	return nil
}

type fakeProvider struct {
	fetch func(ctx context.Context, area entity.BoundingBox) ([]entity.Flight, error)

	mu    sync.Mutex
	areas []entity.BoundingBox
	all   []entity.Flight
}

func (p *fakeProvider) FetchByBoundingBox(ctx context.Context, area entity.BoundingBox) ([]entity.Flight, error) {
	p.mu.Lock()
	p.areas = append(p.areas, area)
	p.mu.Unlock()
	return p.fetch(ctx, area)
}

func (p *fakeProvider) FetchAll(ctx context.Context) ([]entity.Flight, error) {
	return p.all, nil
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.areas)
}

type memoryEvents struct {
	mu     sync.Mutex
	events []entity.DomainEvent
	err    error
}

func (s *memoryEvents) Save(ctx context.Context, event entity.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *memoryEvents) FindByType(ctx context.Context, eventType string) ([]entity.DomainEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.DomainEvent
	for _, e := range s.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out, nil
}

type recordingBus struct {
	mu        sync.Mutex
	published []entity.IntegrationEvent
	err       error
}

func (b *recordingBus) Publish(ctx context.Context, event entity.IntegrationEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, event)
	return nil
}

type notification struct {
	connectionID string
	event        string
	payload      interface{}
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) Notify(ctx context.Context, connectionID, eventName string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{connectionID, eventName, payload})
}

type recordingTrigger struct {
	submitted []string
}

func (t *recordingTrigger) Submit(id string) bool {
	t.submitted = append(t.submitted, id)
	return true
}
