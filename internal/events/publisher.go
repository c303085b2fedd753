package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type Type string

const (
	ItemAdded   Type = "cart.item_added"
	ItemUpdated Type = "cart.item_updated"
	ItemRemoved Type = "cart.item_removed"
	Cleared     Type = "cart.cleared"
	Migrated    Type = "cart.migrated"
)

// Event describes one confirmed cart mutation.
type Event struct {
	Type       Type      `json:"type"`
	ClientID   string    `json:"clientId"`
	CartID     *int64    `json:"cartId,omitempty"`
	ProductID  int64     `json:"productId,omitempty"`
	VariantID  int64     `json:"variantId,omitempty"`
	SizeID     int64     `json:"sizeId,omitempty"`
	Quantity   int       `json:"quantity,omitempty"`
	TotalFinal float64   `json:"totalFinal"`
	OccurredAt time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// KafkaPublisher writes events as JSON keyed by client id, so one client's
// events stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           50 * time.Millisecond,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ClientID),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
