package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxSymbolLength is the longest symbol accepted by any store.
const MaxSymbolLength = 20

// SymbolFundamentals represents the canonical fundamentals record for a symbol
type SymbolFundamentals struct {
	Symbol           string              `json:"symbol"`
	MarketCap        *int64              `json:"market_cap,omitempty"`
	FiftyTwoWeekLow  decimal.NullDecimal `json:"fifty_two_week_low,omitempty"`
	FiftyTwoWeekHigh decimal.NullDecimal `json:"fifty_two_week_high,omitempty"`
	AverageVolume    *int64              `json:"average_volume,omitempty"`
	Industry         string              `json:"industry,omitempty"`
	Sector           string              `json:"sector,omitempty"`
	UpdatedAt        time.Time           `json:"updated_at"`
}
