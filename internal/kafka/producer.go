package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/bmorales/stock-indicator-service/internal/models"
)

// Producer handles publishing market events to Kafka
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishBarsLanded publishes an event signaling that new bars for a
// symbol were written, so indicator recomputation should follow
func (p *Producer) PublishBarsLanded(ctx context.Context, symbol string, date time.Time) error {
	event := models.MarketEvent{
		EventType: models.EventBarsLanded,
		Symbol:    symbol,
		Date:      &date,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, symbol, event)
}

// PublishHotStockDetected publishes a bar that cleared the hot-stock
// screening thresholds
func (p *Producer) PublishHotStockDetected(ctx context.Context, bar *models.DailyBar) error {
	date := bar.Date
	event := models.MarketEvent{
		EventType: models.EventHotStockDetected,
		Symbol:    bar.Symbol,
		Date:      &date,
		Bar:       bar,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, bar.Symbol, event)
}

// PublishIndicatorsUpdated publishes an event after a symbol's indicator
// rows were recomputed
func (p *Producer) PublishIndicatorsUpdated(ctx context.Context, symbol string, rows int) error {
	event := models.MarketEvent{
		EventType: models.EventIndicatorsUpdated,
		Symbol:    symbol,
		RowCount:  rows,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, symbol, event)
}

func (p *Producer) publish(ctx context.Context, key string, event models.MarketEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
