package indicator

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/bmorales/stock-indicator-service/internal/models"
)

// BarReader provides ordered bar history for the engine
type BarReader interface {
	GetDailyBarHistory(symbol string) ([]*models.DailyBar, error)
}

// IndicatorWriter persists computed indicator rows
type IndicatorWriter interface {
	UpsertIndicatorRowBatch(rows []*models.IndicatorRow) error
}

// Engine computes rolling indicator rows from daily bar history. It is
// the sole writer of indicator rows; bars are read-only to it.
type Engine struct {
	bars       BarReader
	indicators IndicatorWriter
	batchSize  int
	workers    int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine creates an indicator engine. batchSize bounds each upsert
// transaction; workers bounds cross-symbol parallelism in RecomputeAll.
func NewEngine(bars BarReader, indicators IndicatorWriter, batchSize, workers int) *Engine {
	if batchSize <= 0 {
		batchSize = 500
	}
	if workers <= 0 {
		workers = 4
	}
	return &Engine{
		bars:       bars,
		indicators: indicators,
		batchSize:  batchSize,
		workers:    workers,
		locks:      make(map[string]*sync.Mutex),
	}
}

// symbolLock returns the lock serializing recomputes for one symbol.
// Concurrent recomputes of the same symbol would interleave their
// batched upserts and leave partially mixed rows.
func (e *Engine) symbolLock(symbol string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		e.locks[symbol] = l
	}
	return l
}

// Recompute reads the full ordered bar history for symbol, computes the
// indicator row for every bar date and upserts them. Re-running over the
// same history produces identical rows, so it is safe after backfills
// and corrections. A symbol with zero bars yields zero rows and no
// error. Returns the number of rows written.
func (e *Engine) Recompute(ctx context.Context, symbol string) (int, error) {
	lock := e.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	history, err := e.bars.GetDailyBarHistory(symbol)
	if err != nil {
		return 0, fmt.Errorf("failed to read bar history for %s: %w", symbol, err)
	}
	if len(history) == 0 {
		return 0, nil
	}

	acc := newAccumulator(symbol)
	batch := make([]*models.IndicatorRow, 0, e.batchSize)
	written := 0

	for i, bar := range history {
		if err := ctx.Err(); err != nil {
			return written, fmt.Errorf("recompute for %s canceled: %w", symbol, err)
		}
		if i > 0 && !bar.Date.After(history[i-1].Date) {
			return written, fmt.Errorf("bar history for %s not in ascending date order at %s",
				symbol, bar.Date.Format("2006-01-02"))
		}

		batch = append(batch, acc.observe(bar))
		if len(batch) >= e.batchSize {
			if err := e.indicators.UpsertIndicatorRowBatch(batch); err != nil {
				return written, fmt.Errorf("failed to write indicator rows for %s: %w", symbol, err)
			}
			written += len(batch)
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := e.indicators.UpsertIndicatorRowBatch(batch); err != nil {
			return written, fmt.Errorf("failed to write indicator rows for %s: %w", symbol, err)
		}
		written += len(batch)
	}

	return written, nil
}

// Result reports the outcome of one symbol's recompute pass
type Result struct {
	Symbol string
	Rows   int
	Err    error
}

// RecomputeAll recomputes every given symbol with bounded parallelism.
// Symbols are independent, so one symbol's failure does not abort the
// others; each failure is reported in its Result.
func (e *Engine) RecomputeAll(ctx context.Context, symbols []string) []Result {
	results := make([]Result, len(symbols))
	sem := make(chan struct{}, e.workers)
	var wg sync.WaitGroup

	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			rows, err := e.Recompute(ctx, symbol)
			if err != nil {
				log.Printf("recompute failed for %s: %v", symbol, err)
			}
			results[i] = Result{Symbol: symbol, Rows: rows, Err: err}
		}(i, symbol)
	}

	wg.Wait()
	return results
}
