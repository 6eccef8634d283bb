package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"
)

const (
	natsFlushTimeout = 5 * time.Second

	// one synchronous event per write; the 1s library default would stall each publish
	kafkaBatchTimeout = 5 * time.Millisecond
)

// Transport sends one encoded message to a topic on the underlying broker
type Transport interface {
	Send(ctx context.Context, topic, key string, payload []byte) error
	Close() error
}

// NATSTransport publishes to subject "<prefix>.<topic>"
type NATSTransport struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSTransport creates a NATS transport on an existing connection
func NewNATSTransport(conn *nats.Conn, prefix string) *NATSTransport {
	return &NATSTransport{conn: conn, prefix: prefix}
}

// Subject returns the NATS subject for a topic
func (t *NATSTransport) Subject(topic string) string {
	return natsSubject(t.prefix, topic)
}

func natsSubject(prefix, topic string) string {
	if prefix == "" {
		return topic
	}
	return prefix + "." + topic
}

// Send publishes and flushes, so a returned nil means the server received it
func (t *NATSTransport) Send(ctx context.Context, topic, key string, payload []byte) error {
	msg := nats.NewMsg(t.Subject(topic))
	msg.Data = payload
	if key != "" {
		msg.Header.Set("Routing-Key", key)
	}

	if err := t.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}

	flushCtx, cancel := context.WithTimeout(ctx, natsFlushTimeout)
	defer cancel()
	if err := t.conn.FlushWithContext(flushCtx); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	return nil
}

// Close leaves the connection to its owner
func (t *NATSTransport) Close() error {
	return nil
}

// KafkaTransport writes to topic "<prefix><topic>", keyed by routing key
type KafkaTransport struct {
	writer *kafka.Writer
	prefix string
}

// NewKafkaTransport creates a Kafka transport
func NewKafkaTransport(brokers []string, prefix string) (*KafkaTransport, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka transport requires at least one broker")
	}
	return &KafkaTransport{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           kafkaBatchTimeout,
		},
		prefix: prefix,
	}, nil
}

// Topic returns the Kafka topic for an event type
func (t *KafkaTransport) Topic(topic string) string {
	return t.prefix + topic
}

// Send writes one message and waits for all in-sync replicas
func (t *KafkaTransport) Send(ctx context.Context, topic, key string, payload []byte) error {
	return t.writer.WriteMessages(ctx, kafka.Message{
		Topic: t.Topic(topic),
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now().UTC(),
	})
}

// Close flushes and closes the writer
func (t *KafkaTransport) Close() error {
	return t.writer.Close()
}
