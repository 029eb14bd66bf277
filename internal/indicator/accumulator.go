package indicator

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bmorales/stock-indicator-service/internal/models"
)

// Rolling window sizes. All windows count observations, not calendar
// days, except the two extrema windows which are calendar-bound.
var smaWindows = []int{5, 10, 20, 50, 100, 200}

const (
	rangeWindow    = 20 // adr20
	dollarWindow   = 20 // avd20
	atrWindow      = 14 // atr14
	yearWindowDays = 365
	halfWindowDays = 182
)

// volumeRatioSpecs drive a130/a260/a390: sum of the most recent
// `recent` volumes over the mean of the trailing `window` volumes.
var volumeRatioSpecs = []struct {
	recent int
	window int
}{
	{1, 30},
	{2, 60},
	{3, 90},
}

// accumulator holds the per-symbol rolling state for one recompute pass.
// It is fed bars in strictly ascending date order and emits one
// IndicatorRow per bar; every row is a pure function of the bar history
// prefix ending at that date.
type accumulator struct {
	symbol  string
	bars    []*models.DailyBar
	closes  []decimal.Decimal
	volumes []int64

	// Wilder ATR state
	trSeedSum float64
	trCount   int
	atr       float64
}

func newAccumulator(symbol string) *accumulator {
	return &accumulator{symbol: symbol}
}

// observe folds the next bar into the rolling state and returns the
// indicator row as of that bar's date
func (a *accumulator) observe(bar *models.DailyBar) *models.IndicatorRow {
	a.observeTrueRange(bar)
	a.bars = append(a.bars, bar)
	a.closes = append(a.closes, bar.Close)
	a.volumes = append(a.volumes, bar.Volume)

	row := &models.IndicatorRow{
		Symbol: a.symbol,
		Date:   bar.Date,
	}

	smas := []*decimal.NullDecimal{&row.SMA5, &row.SMA10, &row.SMA20, &row.SMA50, &row.SMA100, &row.SMA200}
	prevs := []*decimal.NullDecimal{&row.SMA5S1, &row.SMA10S1, &row.SMA20S1, &row.SMA50S1, &row.SMA100S1, &row.SMA200S1}
	for i, window := range smaWindows {
		*smas[i] = a.sma(window, 0)
		*prevs[i] = a.sma(window, 1)
	}

	row.ADR20 = a.averageDailyRange()
	row.AVD20 = a.averageDollarVolume()
	row.ATR14 = a.averageTrueRange()

	ratios := []*decimal.NullDecimal{&row.A130, &row.A260, &row.A390}
	for i, spec := range volumeRatioSpecs {
		*ratios[i] = a.volumeRatio(spec.recent, spec.window)
	}

	row.FiftyTwoWeekHigh, row.FiftyTwoWeekHighDate = a.trailingHigh(bar.Date, yearWindowDays)
	row.TwentySixWeekHigh, row.TwentySixWeekHighDate = a.trailingHigh(bar.Date, halfWindowDays)

	return row
}

// sma returns the mean of `window` closes ending `offset` observations
// before the latest, or null when not enough history has accumulated
func (a *accumulator) sma(window, offset int) decimal.NullDecimal {
	end := len(a.closes) - offset
	if end < window {
		return decimal.NullDecimal{}
	}

	sum := decimal.Zero
	for _, c := range a.closes[end-window : end] {
		sum = sum.Add(c)
	}
	avg := sum.Div(decimal.NewFromInt(int64(window))).Round(2)
	return decimal.NullDecimal{Decimal: avg, Valid: true}
}

// averageDailyRange is the mean daily range over the trailing 20 bars,
// expressed as a percentage-scaled value. Bars without explicit high/low
// fall back to the absolute close-to-close change; a bar with no usable
// range observation disqualifies the whole window.
func (a *accumulator) averageDailyRange() decimal.NullDecimal {
	n := len(a.bars)
	if n < rangeWindow {
		return decimal.NullDecimal{}
	}

	total := decimal.Zero
	for i := n - rangeWindow; i < n; i++ {
		r, ok := a.barRange(i)
		if !ok {
			return decimal.NullDecimal{}
		}
		total = total.Add(r)
	}

	avg := total.Div(decimal.NewFromInt(rangeWindow)).Mul(decimal.NewFromInt(100)).Round(2)
	return decimal.NullDecimal{Decimal: avg, Valid: true}
}

// barRange returns high-low for the bar at index i, or the absolute
// close change from the prior bar when high/low are absent
func (a *accumulator) barRange(i int) (decimal.Decimal, bool) {
	b := a.bars[i]
	if b.High.Valid && b.Low.Valid {
		return b.High.Decimal.Sub(b.Low.Decimal), true
	}
	if i == 0 {
		return decimal.Zero, false
	}
	return b.Close.Sub(a.bars[i-1].Close).Abs(), true
}

// averageDollarVolume is mean close times mean volume over the trailing
// 20 bars
func (a *accumulator) averageDollarVolume() decimal.NullDecimal {
	n := len(a.closes)
	if n < dollarWindow {
		return decimal.NullDecimal{}
	}

	closeSum := decimal.Zero
	var volumeSum int64
	for i := n - dollarWindow; i < n; i++ {
		closeSum = closeSum.Add(a.closes[i])
		volumeSum += a.volumes[i]
	}

	window := decimal.NewFromInt(dollarWindow)
	avgClose := closeSum.Div(window)
	avgVolume := decimal.NewFromInt(volumeSum).Div(window)
	value := avgClose.Mul(avgVolume).Round(2)
	return decimal.NullDecimal{Decimal: value, Valid: true}
}

// observeTrueRange advances the Wilder ATR state with the true range of
// the incoming bar. Must be called before the bar is appended so the
// previous close is still the last element.
func (a *accumulator) observeTrueRange(bar *models.DailyBar) {
	if len(a.closes) == 0 {
		return
	}
	prevClose := a.closes[len(a.closes)-1].InexactFloat64()
	high := a.effectiveHigh(bar)
	low := a.effectiveLow(bar)

	tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
	if !math.IsInf(tr, 0) && !math.IsNaN(tr) {
		a.trCount++
		if a.trCount <= atrWindow {
			a.trSeedSum += tr
			if a.trCount == atrWindow {
				a.atr = a.trSeedSum / atrWindow
			}
		} else {
			a.atr = (float64(atrWindow-1)*a.atr + tr) / atrWindow
		}
	}
}

func (a *accumulator) averageTrueRange() decimal.NullDecimal {
	if a.trCount < atrWindow {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(a.atr).Round(2), Valid: true}
}

func (a *accumulator) effectiveHigh(bar *models.DailyBar) float64 {
	if bar.High.Valid {
		return bar.High.Decimal.InexactFloat64()
	}
	return decimal.Max(bar.Open, bar.Close).InexactFloat64()
}

func (a *accumulator) effectiveLow(bar *models.DailyBar) float64 {
	if bar.Low.Valid {
		return bar.Low.Decimal.InexactFloat64()
	}
	return decimal.Min(bar.Open, bar.Close).InexactFloat64()
}

// volumeRatio is the sum of the most recent `recent` volumes over the
// mean of the trailing `window` volumes
func (a *accumulator) volumeRatio(recent, window int) decimal.NullDecimal {
	n := len(a.volumes)
	if n < window {
		return decimal.NullDecimal{}
	}

	var recentSum, windowSum int64
	for i := n - recent; i < n; i++ {
		recentSum += a.volumes[i]
	}
	for i := n - window; i < n; i++ {
		windowSum += a.volumes[i]
	}
	if windowSum == 0 {
		return decimal.NullDecimal{}
	}

	avg := decimal.NewFromInt(windowSum).Div(decimal.NewFromInt(int64(window)))
	ratio := decimal.NewFromInt(recentSum).Div(avg).Round(2)
	return decimal.NullDecimal{Decimal: ratio, Valid: true}
}

// trailingHigh returns the maximum close within the trailing calendar
// window ending at asOf, with the date it occurred. Ties resolve to the
// most recent occurrence.
func (a *accumulator) trailingHigh(asOf time.Time, days int) (decimal.NullDecimal, *time.Time) {
	cutoff := asOf.AddDate(0, 0, -days)

	var high decimal.Decimal
	var highDate time.Time
	found := false
	for _, b := range a.bars {
		if b.Date.Before(cutoff) {
			continue
		}
		if !found || b.Close.GreaterThanOrEqual(high) {
			high = b.Close
			highDate = b.Date
			found = true
		}
	}
	if !found {
		return decimal.NullDecimal{}, nil
	}

	d := highDate
	return decimal.NullDecimal{Decimal: high.Round(2), Valid: true}, &d
}
