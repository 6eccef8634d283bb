package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"flightwatch-service/internal/domain/repository"
	"flightwatch-service/pkg/logger"
	"flightwatch-service/pkg/metrics"

	"github.com/google/uuid"
)

// EventConnected is the first event on every stream; its data carries the connection id
const EventConnected = "connected"

const (
	defaultBufferSize = 32
	defaultHeartbeat  = 15 * time.Second
)

// message is one encoded server-sent event queued for a connection
type message struct {
	event string
	data  []byte
}

type connection struct {
	id     string
	events chan message
	cancel context.CancelFunc
}

// HubOptions tunes per-connection buffering and keep-alive
type HubOptions struct {
	BufferSize int
	Heartbeat  time.Duration
}

// Hub is the notification gateway: it holds live SSE connections and
// delivers events to them by connection id.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*connection

	bufferSize   int
	heartbeat    time.Duration
	onDisconnect func(connectionID string)

	logger  logger.Logger
	metrics *metrics.Metrics
}

var _ repository.Notifier = (*Hub)(nil)

// NewHub creates a new SSE hub
func NewHub(logger logger.Logger, m *metrics.Metrics, opts HubOptions) *Hub {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = defaultHeartbeat
	}
	return &Hub{
		conns:      make(map[string]*connection),
		bufferSize: opts.BufferSize,
		heartbeat:  opts.Heartbeat,
		logger:     logger,
		metrics:    m,
	}
}

// OnDisconnect registers a callback run after a stream closes.
// Must be called before the hub serves requests.
func (h *Hub) OnDisconnect(fn func(connectionID string)) {
	h.onDisconnect = fn
}

// ServeHTTP opens an SSE stream and blocks until the client goes away
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx, cancel := context.WithCancel(r.Context())
	conn := &connection{
		id:     uuid.NewString(),
		events: make(chan message, h.bufferSize),
		cancel: cancel,
	}

	h.register(conn)
	defer h.unregister(conn)

	log := h.logger.With("connectionId", conn.id)
	log.Info("Client connected")

	hello, _ := json.Marshal(map[string]string{"connectionId": conn.id})
	if err := writeEvent(w, message{event: EventConnected, data: hello}); err != nil {
		log.Warn("Failed to write connected event", "error", err)
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Client disconnected")
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case msg := <-conn.events:
			if err := writeEvent(w, msg); err != nil {
				log.Warn("Failed to write event", "event", msg.event, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

// Notify queues an event for a connection without blocking. Unknown
// connections and full buffers drop the event.
func (h *Hub) Notify(ctx context.Context, connectionID, eventName string, payload interface{}) {
	h.mu.RLock()
	conn, ok := h.conns[connectionID]
	h.mu.RUnlock()

	if !ok {
		h.logger.Debug("Notification for unknown connection dropped", "connectionId", connectionID, "event", eventName)
		h.metrics.Notifications.WithLabelValues(eventName, "no_connection").Inc()
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to encode notification", "connectionId", connectionID, "event", eventName, "error", err)
		h.metrics.Notifications.WithLabelValues(eventName, "encode_error").Inc()
		return
	}

	select {
	case conn.events <- message{event: eventName, data: data}:
		h.metrics.Notifications.WithLabelValues(eventName, "queued").Inc()
	default:
		h.logger.Warn("Client buffer full, notification dropped", "connectionId", connectionID, "event", eventName)
		h.metrics.Notifications.WithLabelValues(eventName, "dropped").Inc()
	}
}

// Connected reports whether a connection is currently open
func (h *Hub) Connected(connectionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[connectionID]
	return ok
}

// Count returns the number of open connections
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close ends every open stream
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conn := range h.conns {
		conn.cancel()
	}
}

func (h *Hub) register(conn *connection) {
	h.mu.Lock()
	h.conns[conn.id] = conn
	h.mu.Unlock()
}

func (h *Hub) unregister(conn *connection) {
	h.mu.Lock()
	delete(h.conns, conn.id)
	h.mu.Unlock()

	conn.cancel()

	if h.onDisconnect != nil {
		h.onDisconnect(conn.id)
	}
}

func writeEvent(w http.ResponseWriter, msg message) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.event, msg.data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}
