// Package events publishes domain events to Kafka. The producer is optional:
// a nil *Producer is a no-op, so callers never need to branch on whether the
// broker is configured.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const writeTimeout = 5 * time.Second

// Event types published by the API.
const (
	UserCreated   = "user.created"
	UserDeleted   = "user.deleted"
	FolderCreated = "folder.created"
	FileUploaded  = "file.uploaded"
	SystemReset   = "system.reset"
)

type envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload,omitempty"`
}

// Producer writes JSON-encoded domain events to a single topic.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer connects a producer to the given brokers and topic.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: writeTimeout,
		},
	}
}

// Publish emits one event keyed by the entity id. A nil producer drops the
// event silently.
func (p *Producer) Publish(ctx context.Context, eventType, key string, payload any) error {
	if p == nil {
		return nil
	}
	data, err := json.Marshal(envelope{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", eventType, err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
	}); err != nil {
		return fmt.Errorf("events: publish %s: %w", eventType, err)
	}
	return nil
}

// Close flushes and releases the underlying writer.
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
