package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// NotificationDispatcher is informed, fire-and-forget, of order lifecycle
// events. Implementations must never fail the primary operation; failures
// are logged and swallowed.
type NotificationDispatcher interface {
	Notify(ctx context.Context, recipientID uuid.UUID, title, body string, data map[string]string)
}

type notificationEvent struct {
	RecipientID string            `json:"recipient_id"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
	SentAt      time.Time         `json:"sent_at"`
}

// KafkaDispatcher publishes notification events to a topic consumed by the
// delivery worker. With no brokers configured it degrades to logging only.
type KafkaDispatcher struct {
	writer *kafka.Writer
}

// NewKafkaDispatcher constructs a dispatcher for the given brokers and topic.
func NewKafkaDispatcher(brokers []string, topic string) *KafkaDispatcher {
	if len(brokers) == 0 {
		log.Println("[Notify] Kafka brokers not configured, notifications disabled")
		return &KafkaDispatcher{}
	}

	return &KafkaDispatcher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
	}
}

// Notify publishes one event keyed by recipient.
func (d *KafkaDispatcher) Notify(ctx context.Context, recipientID uuid.UUID, title, body string, data map[string]string) {
	if d.writer == nil {
		log.Printf("[Notify] skipped (no broker): %s %q", recipientID, title)
		return
	}

	payload, err := json.Marshal(notificationEvent{
		RecipientID: recipientID.String(),
		Title:       title,
		Body:        body,
		Data:        data,
		SentAt:      time.Now(),
	})
	if err != nil {
		log.Printf("[Notify] marshal failed: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := d.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(recipientID.String()),
		Value: payload,
	}); err != nil {
		log.Printf("[Notify] publish failed for %s: %v", recipientID, err)
	}
}

// Close flushes and closes the underlying writer.
func (d *KafkaDispatcher) Close() error {
	if d.writer == nil {
		return nil
	}
	return d.writer.Close()
}
