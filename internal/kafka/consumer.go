package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/bmorales/stock-indicator-service/internal/models"
)

// Recomputer triggers indicator recomputation for a symbol
type Recomputer interface {
	Recompute(ctx context.Context, symbol string) (int, error)
}

// Consumer reads bars-landed events and triggers indicator
// recomputation for the affected symbol. Recompute is idempotent, so
// at-least-once delivery is tolerated.
type Consumer struct {
	reader *kafka.Reader
	engine Recomputer
}

// NewConsumer creates a new Kafka consumer for bars-landed events
func NewConsumer(brokers []string, topic, groupID string, engine Recomputer) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader: reader,
		engine: engine,
	}
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start(ctx context.Context) error {
	log.Printf("Starting Kafka consumer for topic: %s", c.reader.Config().Topic)

	for {
		select {
		case <-ctx.Done():
			log.Println("Kafka consumer shutting down...")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil // Context cancelled, normal shutdown
				}
				log.Printf("Error reading message: %v", err)
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				log.Printf("Error processing message: %v", err)
				// Continue processing other messages
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	log.Printf("Received message from partition %d offset %d: key=%s",
		msg.Partition, msg.Offset, string(msg.Key))

	var event models.MarketEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal market event: %w", err)
	}

	// Only bars-landed events trigger recomputation
	if event.EventType != models.EventBarsLanded {
		log.Printf("Ignoring event type: %s", event.EventType)
		return nil
	}

	if event.Symbol == "" {
		return fmt.Errorf("bars-landed event missing symbol")
	}

	rows, err := c.engine.Recompute(ctx, event.Symbol)
	if err != nil {
		return fmt.Errorf("failed to recompute indicators for %s: %w", event.Symbol, err)
	}

	log.Printf("Recomputed %d indicator rows for %s", rows, event.Symbol)
	return nil
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
