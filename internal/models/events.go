package models

import "time"

// Event type constants for the market event stream
const (
	EventBarsLanded        = "BARS_LANDED"
	EventHotStockDetected  = "HOT_STOCK_DETECTED"
	EventIndicatorsUpdated = "INDICATORS_UPDATED"
)

// MarketEvent represents a Kafka event on the market-data stream
type MarketEvent struct {
	EventType string     `json:"event_type"`
	Symbol    string     `json:"symbol"`
	Date      *time.Time `json:"date,omitempty"`
	Bar       *DailyBar  `json:"bar,omitempty"`
	RowCount  int        `json:"row_count,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
