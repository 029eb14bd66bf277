package indicator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmorales/stock-indicator-service/internal/models"
)

// MockBarReader serves canned bar histories per symbol
type MockBarReader struct {
	histories map[string][]*models.DailyBar
	errors    map[string]error
}

func NewMockBarReader() *MockBarReader {
	return &MockBarReader{
		histories: make(map[string][]*models.DailyBar),
		errors:    make(map[string]error),
	}
}

func (m *MockBarReader) GetDailyBarHistory(symbol string) ([]*models.DailyBar, error) {
	if err := m.errors[symbol]; err != nil {
		return nil, err
	}
	return m.histories[symbol], nil
}

// MockIndicatorWriter collects written rows. The engine reuses its batch
// slice between calls, so rows are copied out on every write.
type MockIndicatorWriter struct {
	mu         sync.Mutex
	rows       []*models.IndicatorRow
	batchSizes []int
	err        error

	writeDelay time.Duration
	inFlight   int32
	maxFlight  int32
}

func (m *MockIndicatorWriter) UpsertIndicatorRowBatch(rows []*models.IndicatorRow) error {
	cur := atomic.AddInt32(&m.inFlight, 1)
	defer atomic.AddInt32(&m.inFlight, -1)
	for {
		max := atomic.LoadInt32(&m.maxFlight)
		if cur <= max || atomic.CompareAndSwapInt32(&m.maxFlight, max, cur) {
			break
		}
	}
	if m.writeDelay > 0 {
		time.Sleep(m.writeDelay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, rows...)
	m.batchSizes = append(m.batchSizes, len(rows))
	return nil
}

func (m *MockIndicatorWriter) Rows() []*models.IndicatorRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.IndicatorRow, len(m.rows))
	copy(out, m.rows)
	return out
}

func historyFor(symbol string, closes []float64) []*models.DailyBar {
	bars := barsFromCloses(closes)
	for _, b := range bars {
		b.Symbol = symbol
	}
	return bars
}

func TestRecompute(t *testing.T) {
	t.Run("writes one row per bar", func(t *testing.T) {
		reader := NewMockBarReader()
		reader.histories["AAPL"] = historyFor("AAPL", []float64{100, 102, 101, 105, 110})
		writer := &MockIndicatorWriter{}
		engine := NewEngine(reader, writer, 500, 4)

		n, err := engine.Recompute(context.Background(), "AAPL")
		require.NoError(t, err)
		assert.Equal(t, 5, n)

		rows := writer.Rows()
		require.Len(t, rows, 5)
		for i, row := range rows {
			assert.Equal(t, "AAPL", row.Symbol)
			assert.Equal(t, testStart.AddDate(0, 0, i), row.Date)
		}
		require.True(t, rows[4].SMA5.Valid)
		assert.Equal(t, "103.6", rows[4].SMA5.Decimal.String())
	})

	t.Run("zero bars writes nothing", func(t *testing.T) {
		reader := NewMockBarReader()
		writer := &MockIndicatorWriter{}
		engine := NewEngine(reader, writer, 500, 4)

		n, err := engine.Recompute(context.Background(), "GHOST")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.Empty(t, writer.Rows())
	})

	t.Run("recompute is idempotent", func(t *testing.T) {
		reader := NewMockBarReader()
		reader.histories["AAPL"] = historyFor("AAPL", []float64{100, 102, 101, 105, 110, 108, 115})
		writer := &MockIndicatorWriter{}
		engine := NewEngine(reader, writer, 500, 4)

		_, err := engine.Recompute(context.Background(), "AAPL")
		require.NoError(t, err)
		first := writer.Rows()

		_, err = engine.Recompute(context.Background(), "AAPL")
		require.NoError(t, err)
		second := writer.Rows()[len(first):]

		require.Len(t, second, len(first))
		for i := range first {
			assert.Equal(t, *first[i], *second[i])
		}
	})

	t.Run("respects batch size", func(t *testing.T) {
		reader := NewMockBarReader()
		reader.histories["AAPL"] = historyFor("AAPL", []float64{100, 102, 101, 105, 110})
		writer := &MockIndicatorWriter{}
		engine := NewEngine(reader, writer, 2, 4)

		n, err := engine.Recompute(context.Background(), "AAPL")
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, []int{2, 2, 1}, writer.batchSizes)
	})

	t.Run("rejects out of order history", func(t *testing.T) {
		bars := historyFor("AAPL", []float64{100, 102, 101})
		bars[2].Date = bars[0].Date
		reader := NewMockBarReader()
		reader.histories["AAPL"] = bars
		writer := &MockIndicatorWriter{}
		engine := NewEngine(reader, writer, 500, 4)

		_, err := engine.Recompute(context.Background(), "AAPL")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not in ascending date order")
	})

	t.Run("reader errors are wrapped", func(t *testing.T) {
		readErr := errors.New("connection refused")
		reader := NewMockBarReader()
		reader.errors["AAPL"] = readErr
		engine := NewEngine(reader, &MockIndicatorWriter{}, 500, 4)

		_, err := engine.Recompute(context.Background(), "AAPL")
		require.Error(t, err)
		assert.ErrorIs(t, err, readErr)
	})

	t.Run("writer errors are wrapped", func(t *testing.T) {
		writeErr := errors.New("deadlock detected")
		reader := NewMockBarReader()
		reader.histories["AAPL"] = historyFor("AAPL", []float64{100, 102})
		writer := &MockIndicatorWriter{err: writeErr}
		engine := NewEngine(reader, writer, 500, 4)

		n, err := engine.Recompute(context.Background(), "AAPL")
		require.Error(t, err)
		assert.ErrorIs(t, err, writeErr)
		assert.Equal(t, 0, n)
	})

	t.Run("stops on canceled context", func(t *testing.T) {
		reader := NewMockBarReader()
		reader.histories["AAPL"] = historyFor("AAPL", []float64{100, 102, 101})
		writer := &MockIndicatorWriter{}
		engine := NewEngine(reader, writer, 500, 4)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := engine.Recompute(ctx, "AAPL")
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, writer.Rows())
	})

	t.Run("same symbol recomputes are serialized", func(t *testing.T) {
		reader := NewMockBarReader()
		reader.histories["AAPL"] = historyFor("AAPL", []float64{100, 102, 101})
		writer := &MockIndicatorWriter{writeDelay: 10 * time.Millisecond}
		engine := NewEngine(reader, writer, 1, 4)

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := engine.Recompute(context.Background(), "AAPL")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), writer.maxFlight, "writes for one symbol must not overlap")
	})
}

func TestRecomputeAll(t *testing.T) {
	t.Run("processes every symbol", func(t *testing.T) {
		reader := NewMockBarReader()
		reader.histories["AAPL"] = historyFor("AAPL", []float64{100, 102, 101})
		reader.histories["MSFT"] = historyFor("MSFT", []float64{300, 305})
		reader.histories["GOOG"] = historyFor("GOOG", []float64{150})
		writer := &MockIndicatorWriter{}
		engine := NewEngine(reader, writer, 500, 2)

		results := engine.RecomputeAll(context.Background(), []string{"AAPL", "MSFT", "GOOG"})
		require.Len(t, results, 3)

		bySymbol := make(map[string]Result)
		for _, r := range results {
			require.NoError(t, r.Err)
			bySymbol[r.Symbol] = r
		}
		assert.Equal(t, 3, bySymbol["AAPL"].Rows)
		assert.Equal(t, 2, bySymbol["MSFT"].Rows)
		assert.Equal(t, 1, bySymbol["GOOG"].Rows)
		assert.Len(t, writer.Rows(), 6)
	})

	t.Run("one symbol's failure does not abort the others", func(t *testing.T) {
		reader := NewMockBarReader()
		reader.histories["AAPL"] = historyFor("AAPL", []float64{100, 102})
		reader.errors["BROKE"] = errors.New("relation does not exist")
		reader.histories["MSFT"] = historyFor("MSFT", []float64{300, 305, 310})
		writer := &MockIndicatorWriter{}
		engine := NewEngine(reader, writer, 500, 2)

		results := engine.RecomputeAll(context.Background(), []string{"AAPL", "BROKE", "MSFT"})
		require.Len(t, results, 3)

		bySymbol := make(map[string]Result)
		for _, r := range results {
			bySymbol[r.Symbol] = r
		}
		assert.NoError(t, bySymbol["AAPL"].Err)
		assert.Error(t, bySymbol["BROKE"].Err)
		assert.NoError(t, bySymbol["MSFT"].Err)
		assert.Len(t, writer.Rows(), 5)
	})

	t.Run("empty symbol list", func(t *testing.T) {
		engine := NewEngine(NewMockBarReader(), &MockIndicatorWriter{}, 500, 4)
		results := engine.RecomputeAll(context.Background(), nil)
		assert.Empty(t, results)
	})
}
