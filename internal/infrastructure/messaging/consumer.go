package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flightwatch-service/internal/domain/entity"
	"flightwatch-service/pkg/logger"

	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"
)

// Dispatcher routes a decoded integration event to its handler
type Dispatcher interface {
	Dispatch(ctx context.Context, event entity.IntegrationEvent) error
}

// Consumer receives integration events until ctx ends
type Consumer interface {
	Run(ctx context.Context) error
	Close() error
}

func deliver(ctx context.Context, data []byte, dispatcher Dispatcher, log logger.Logger) {
	event, err := Decode(data)
	if err != nil {
		log.Error("Discarding undecodable message", "error", err)
		return
	}
	if err := dispatcher.Dispatch(ctx, event); err != nil {
		log.Error("Failed to handle integration event",
			"eventType", event.EventType(),
			"eventId", event.EventID(),
			"error", err)
	}
}

// NATSConsumer subscribes to every integration event subject. Each
// instance receives every message so it can reach its own connections.
type NATSConsumer struct {
	conn       *nats.Conn
	prefix     string
	dispatcher Dispatcher
	logger     logger.Logger
}

// NewNATSConsumer creates a new NATS consumer
func NewNATSConsumer(conn *nats.Conn, prefix string, dispatcher Dispatcher, logger logger.Logger) *NATSConsumer {
	return &NATSConsumer{
		conn:       conn,
		prefix:     prefix,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Run subscribes and blocks until ctx is cancelled
func (c *NATSConsumer) Run(ctx context.Context) error {
	subs := make([]*nats.Subscription, 0, len(entity.IntegrationEventTypes()))
	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}()

	for _, eventType := range entity.IntegrationEventTypes() {
		subject := natsSubject(c.prefix, eventType)
		sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
			deliver(ctx, msg.Data, c.dispatcher, c.logger)
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		subs = append(subs, sub)
		c.logger.Info("Subscribed to NATS subject", "subject", subject)
	}

	<-ctx.Done()
	return nil
}

// Close leaves the connection to its owner
func (c *NATSConsumer) Close() error {
	return nil
}

// KafkaConsumer reads integration event topics through a consumer group
type KafkaConsumer struct {
	reader     *kafka.Reader
	dispatcher Dispatcher
	logger     logger.Logger
}

// NewKafkaConsumer creates a new Kafka consumer
func NewKafkaConsumer(brokers []string, groupID, topicPrefix string, dispatcher Dispatcher, logger logger.Logger) (*KafkaConsumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer requires at least one broker")
	}
	if groupID == "" {
		return nil, fmt.Errorf("kafka consumer requires group id")
	}

	topics := make([]string, 0, len(entity.IntegrationEventTypes()))
	for _, eventType := range entity.IntegrationEventTypes() {
		topics = append(topics, topicPrefix+eventType)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
	})

	return &KafkaConsumer{
		reader:     reader,
		dispatcher: dispatcher,
		logger:     logger,
	}, nil
}

// Run reads messages until ctx is cancelled
func (c *KafkaConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Kafka read failed", "error", err)
			if err := sleep(ctx, time.Second); err != nil {
				return nil
			}
			continue
		}
		deliver(ctx, msg.Value, c.dispatcher, c.logger)
	}
}

// Close closes the reader
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
