package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// IndicatorRow represents the derived rolling statistics for one symbol
// on one date, keyed by (symbol, date). Every value column is nullable:
// a window that does not yet have enough history simply stays unset.
type IndicatorRow struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`

	// Simple moving averages of the close over the trailing N observations.
	SMA5   decimal.NullDecimal `json:"sma5"`
	SMA10  decimal.NullDecimal `json:"sma10"`
	SMA20  decimal.NullDecimal `json:"sma20"`
	SMA50  decimal.NullDecimal `json:"sma50"`
	SMA100 decimal.NullDecimal `json:"sma100"`
	SMA200 decimal.NullDecimal `json:"sma200"`

	// The same averages evaluated one observation earlier, so consumers
	// can read slope direction without a second query.
	SMA5S1   decimal.NullDecimal `json:"sma5s1"`
	SMA10S1  decimal.NullDecimal `json:"sma10s1"`
	SMA20S1  decimal.NullDecimal `json:"sma20s1"`
	SMA50S1  decimal.NullDecimal `json:"sma50s1"`
	SMA100S1 decimal.NullDecimal `json:"sma100s1"`
	SMA200S1 decimal.NullDecimal `json:"sma200s1"`

	ADR20 decimal.NullDecimal `json:"adr20"` // average daily range %, 20 obs
	AVD20 decimal.NullDecimal `json:"avd20"` // average dollar volume, 20 obs
	ATR14 decimal.NullDecimal `json:"atr14"` // Wilder average true range, 14 obs

	// Volume ratios: sum of the most recent 1/2/3 volumes over the
	// average volume of the trailing 30/60/90 observations.
	A130 decimal.NullDecimal `json:"a130"`
	A260 decimal.NullDecimal `json:"a260"`
	A390 decimal.NullDecimal `json:"a390"`

	// Trailing-window extrema of the close: 52-week (365 calendar days)
	// and 26-week (182 calendar days) highs with the date each occurred.
	FiftyTwoWeekHigh      decimal.NullDecimal `json:"ftwh"`
	FiftyTwoWeekHighDate  *time.Time          `json:"ftwhdate,omitempty"`
	TwentySixWeekHigh     decimal.NullDecimal `json:"tswh"`
	TwentySixWeekHighDate *time.Time          `json:"tswhdate,omitempty"`
}
