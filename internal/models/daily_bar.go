package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyBar represents one symbol's price/volume observation for a single
// trading day. Exactly one bar exists per (symbol, date); bars are
// immutable after insert unless the caller explicitly overwrites.
type DailyBar struct {
	ID     int             `json:"id"`
	Symbol string          `json:"symbol"`
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	Close  decimal.Decimal `json:"close"`
	// High/Low are optional; sources that only report a last price leave
	// them unset and downstream range calculations fall back to a
	// close-to-close proxy.
	High           decimal.NullDecimal `json:"high,omitempty"`
	Low            decimal.NullDecimal `json:"low,omitempty"`
	PriceChangePct decimal.Decimal     `json:"price_change_pct"`
	Volume         int64               `json:"volume"`
	VolumeRatio    decimal.Decimal     `json:"volume_ratio"`
	CreatedAt      time.Time           `json:"created_at"`
}
