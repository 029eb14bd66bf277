package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bmorales/stock-indicator-service/internal/models"
)

// AppendDailyBar inserts a bar for (symbol, date). Without overwrite the
// insert fails with ErrDuplicateEntry when a bar already exists for that
// key; with overwrite the existing bar is replaced.
func (db *DB) AppendDailyBar(b *models.DailyBar, overwrite bool) error {
	if err := validateSymbol(b.Symbol); err != nil {
		return err
	}

	query := `
		INSERT INTO hot_stocks (
			symbol, date, open, high, low, close,
			price_change_pct, volume, volume_ratio, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if overwrite {
		query += `
		ON CONFLICT (symbol, date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			price_change_pct = EXCLUDED.price_change_pct,
			volume = EXCLUDED.volume,
			volume_ratio = EXCLUDED.volume_ratio,
			created_at = EXCLUDED.created_at
		`
	}
	query += ` RETURNING id`

	now := time.Now()
	err := db.conn.QueryRow(query,
		b.Symbol, b.Date, b.Open, b.High, b.Low, b.Close,
		b.PriceChangePct, b.Volume, b.VolumeRatio, now,
	).Scan(&b.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("bar for %s on %s: %w", b.Symbol, b.Date.Format("2006-01-02"), ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to append daily bar: %w", err)
	}
	b.CreatedAt = now
	return nil
}

// AppendDailyBarBatch upserts multiple bars in a single transaction
func (db *DB) AppendDailyBarBatch(bars []*models.DailyBar) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO hot_stocks (
			symbol, date, open, high, low, close,
			price_change_pct, volume, volume_ratio, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (symbol, date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			price_change_pct = EXCLUDED.price_change_pct,
			volume = EXCLUDED.volume,
			volume_ratio = EXCLUDED.volume_ratio,
			created_at = EXCLUDED.created_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, b := range bars {
		if err := validateSymbol(b.Symbol); err != nil {
			return err
		}
		_, err := stmt.Exec(
			b.Symbol, b.Date, b.Open, b.High, b.Low, b.Close,
			b.PriceChangePct, b.Volume, b.VolumeRatio, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert bar for %s: %w", b.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetDailyBar retrieves the bar for a specific symbol and date
func (db *DB) GetDailyBar(symbol string, date time.Time) (*models.DailyBar, error) {
	query := `
		SELECT id, symbol, date, open, high, low, close,
		       price_change_pct, volume, volume_ratio, created_at
		FROM hot_stocks
		WHERE symbol = $1 AND date = $2
	`
	var b models.DailyBar
	err := db.conn.QueryRow(query, symbol, date).Scan(
		&b.ID, &b.Symbol, &b.Date, &b.Open, &b.High, &b.Low, &b.Close,
		&b.PriceChangePct, &b.Volume, &b.VolumeRatio, &b.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bar for %s on %s: %w", symbol, date.Format("2006-01-02"), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get daily bar: %w", err)
	}
	return &b, nil
}

// GetDailyBarRange retrieves bars for a symbol within a date range,
// ordered by ascending date. The ordering is load-bearing: the indicator
// engine depends on it for rolling-window computation.
func (db *DB) GetDailyBarRange(symbol string, fromDate, toDate time.Time) ([]*models.DailyBar, error) {
	query := `
		SELECT id, symbol, date, open, high, low, close,
		       price_change_pct, volume, volume_ratio, created_at
		FROM hot_stocks
		WHERE symbol = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`
	return db.scanDailyBars(db.conn.Query(query, symbol, fromDate, toDate))
}

// GetDailyBarHistory retrieves the full bar history for a symbol,
// ordered by ascending date
func (db *DB) GetDailyBarHistory(symbol string) ([]*models.DailyBar, error) {
	query := `
		SELECT id, symbol, date, open, high, low, close,
		       price_change_pct, volume, volume_ratio, created_at
		FROM hot_stocks
		WHERE symbol = $1
		ORDER BY date ASC
	`
	return db.scanDailyBars(db.conn.Query(query, symbol))
}

// GetLatestBarDate retrieves the most recent trading date with any bar.
// Returns ErrNotFound when the store is empty.
func (db *DB) GetLatestBarDate() (time.Time, error) {
	query := `SELECT MAX(date) FROM hot_stocks`
	var latest sql.NullTime
	if err := db.conn.QueryRow(query).Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("failed to get latest bar date: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, fmt.Errorf("latest bar date: %w", ErrNotFound)
	}
	return latest.Time, nil
}

// GetActiveSymbols retrieves the symbols that have a bar on the most
// recent trading date
func (db *DB) GetActiveSymbols() ([]string, error) {
	query := `
		SELECT DISTINCT symbol
		FROM hot_stocks
		WHERE date = (SELECT MAX(date) FROM hot_stocks)
		ORDER BY symbol ASC
	`
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	return symbols, rows.Err()
}

// GetHotStocks retrieves the bars on a date whose price change and volume
// ratio both clear the given thresholds, ordered by price change descending
func (db *DB) GetHotStocks(date time.Time, minChangePct, minVolumeRatio decimal.Decimal) ([]*models.DailyBar, error) {
	query := `
		SELECT id, symbol, date, open, high, low, close,
		       price_change_pct, volume, volume_ratio, created_at
		FROM hot_stocks
		WHERE date = $1 AND price_change_pct > $2 AND volume_ratio > $3
		ORDER BY price_change_pct DESC
	`
	return db.scanDailyBars(db.conn.Query(query, date, minChangePct, minVolumeRatio))
}

// DeleteDailyBarsOlderThan removes bars older than a specified date
func (db *DB) DeleteDailyBarsOlderThan(date time.Time) (int64, error) {
	query := `DELETE FROM hot_stocks WHERE date < $1`
	result, err := db.conn.Exec(query, date)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old daily bars: %w", err)
	}
	return result.RowsAffected()
}

func (db *DB) scanDailyBars(rows *sql.Rows, err error) ([]*models.DailyBar, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query daily bars: %w", err)
	}
	defer rows.Close()

	var bars []*models.DailyBar
	for rows.Next() {
		var b models.DailyBar
		err := rows.Scan(
			&b.ID, &b.Symbol, &b.Date, &b.Open, &b.High, &b.Low, &b.Close,
			&b.PriceChangePct, &b.Volume, &b.VolumeRatio, &b.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily bar: %w", err)
		}
		bars = append(bars, &b)
	}
	return bars, rows.Err()
}
