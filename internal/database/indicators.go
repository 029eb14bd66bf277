package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bmorales/stock-indicator-service/internal/models"
)

const indicatorColumns = `
	symbol, date,
	sma5, sma10, sma20, sma50, sma100, sma200,
	sma5s1, sma10s1, sma20s1, sma50s1, sma100s1, sma200s1,
	adr20, avd20, atr14,
	a130, a260, a390,
	ftwh, ftwhdate, tswh, tswhdate`

const upsertIndicatorQuery = `
	INSERT INTO stockindicators (` + indicatorColumns + `
	) VALUES (
		$1, $2,
		$3, $4, $5, $6, $7, $8,
		$9, $10, $11, $12, $13, $14,
		$15, $16, $17,
		$18, $19, $20,
		$21, $22, $23, $24
	)
	ON CONFLICT (symbol, date) DO UPDATE SET
		sma5 = EXCLUDED.sma5, sma10 = EXCLUDED.sma10, sma20 = EXCLUDED.sma20,
		sma50 = EXCLUDED.sma50, sma100 = EXCLUDED.sma100, sma200 = EXCLUDED.sma200,
		sma5s1 = EXCLUDED.sma5s1, sma10s1 = EXCLUDED.sma10s1, sma20s1 = EXCLUDED.sma20s1,
		sma50s1 = EXCLUDED.sma50s1, sma100s1 = EXCLUDED.sma100s1, sma200s1 = EXCLUDED.sma200s1,
		adr20 = EXCLUDED.adr20, avd20 = EXCLUDED.avd20, atr14 = EXCLUDED.atr14,
		a130 = EXCLUDED.a130, a260 = EXCLUDED.a260, a390 = EXCLUDED.a390,
		ftwh = EXCLUDED.ftwh, ftwhdate = EXCLUDED.ftwhdate,
		tswh = EXCLUDED.tswh, tswhdate = EXCLUDED.tswhdate
`

func indicatorArgs(r *models.IndicatorRow) []interface{} {
	return []interface{}{
		r.Symbol, r.Date,
		r.SMA5, r.SMA10, r.SMA20, r.SMA50, r.SMA100, r.SMA200,
		r.SMA5S1, r.SMA10S1, r.SMA20S1, r.SMA50S1, r.SMA100S1, r.SMA200S1,
		r.ADR20, r.AVD20, r.ATR14,
		r.A130, r.A260, r.A390,
		r.FiftyTwoWeekHigh, r.FiftyTwoWeekHighDate,
		r.TwentySixWeekHigh, r.TwentySixWeekHighDate,
	}
}

// UpsertIndicatorRow inserts or overwrites the indicator row keyed by
// (symbol, date)
func (db *DB) UpsertIndicatorRow(r *models.IndicatorRow) error {
	if err := validateSymbol(r.Symbol); err != nil {
		return err
	}

	_, err := db.conn.Exec(upsertIndicatorQuery, indicatorArgs(r)...)
	if err != nil {
		return fmt.Errorf("failed to upsert indicator row for %s: %w", r.Symbol, err)
	}
	return nil
}

// UpsertIndicatorRowBatch upserts multiple indicator rows in a single
// transaction
func (db *DB) UpsertIndicatorRowBatch(rows []*models.IndicatorRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(upsertIndicatorQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if err := validateSymbol(r.Symbol); err != nil {
			return err
		}
		if _, err := stmt.Exec(indicatorArgs(r)...); err != nil {
			return fmt.Errorf("failed to upsert indicator row for %s: %w", r.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetIndicatorRow retrieves the indicator row for a symbol on a date
func (db *DB) GetIndicatorRow(symbol string, date time.Time) (*models.IndicatorRow, error) {
	query := `SELECT ` + indicatorColumns + `
		FROM stockindicators
		WHERE symbol = $1 AND date = $2
	`
	var r models.IndicatorRow
	var ftwhDate, tswhDate sql.NullTime

	err := db.conn.QueryRow(query, symbol, date).Scan(
		&r.Symbol, &r.Date,
		&r.SMA5, &r.SMA10, &r.SMA20, &r.SMA50, &r.SMA100, &r.SMA200,
		&r.SMA5S1, &r.SMA10S1, &r.SMA20S1, &r.SMA50S1, &r.SMA100S1, &r.SMA200S1,
		&r.ADR20, &r.AVD20, &r.ATR14,
		&r.A130, &r.A260, &r.A390,
		&r.FiftyTwoWeekHigh, &ftwhDate, &r.TwentySixWeekHigh, &tswhDate,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("indicator row for %s on %s: %w", symbol, date.Format("2006-01-02"), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get indicator row: %w", err)
	}

	if ftwhDate.Valid {
		r.FiftyTwoWeekHighDate = &ftwhDate.Time
	}
	if tswhDate.Valid {
		r.TwentySixWeekHighDate = &tswhDate.Time
	}
	return &r, nil
}

// GetIndicatorHistory retrieves indicator rows for a symbol, most recent
// first
func (db *DB) GetIndicatorHistory(symbol string, limit int) ([]*models.IndicatorRow, error) {
	query := `SELECT ` + indicatorColumns + `
		FROM stockindicators
		WHERE symbol = $1
		ORDER BY date DESC
		LIMIT $2
	`
	rows, err := db.conn.Query(query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get indicator history: %w", err)
	}
	defer rows.Close()

	var history []*models.IndicatorRow
	for rows.Next() {
		var r models.IndicatorRow
		var ftwhDate, tswhDate sql.NullTime

		err := rows.Scan(
			&r.Symbol, &r.Date,
			&r.SMA5, &r.SMA10, &r.SMA20, &r.SMA50, &r.SMA100, &r.SMA200,
			&r.SMA5S1, &r.SMA10S1, &r.SMA20S1, &r.SMA50S1, &r.SMA100S1, &r.SMA200S1,
			&r.ADR20, &r.AVD20, &r.ATR14,
			&r.A130, &r.A260, &r.A390,
			&r.FiftyTwoWeekHigh, &ftwhDate, &r.TwentySixWeekHigh, &tswhDate,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan indicator row: %w", err)
		}

		if ftwhDate.Valid {
			r.FiftyTwoWeekHighDate = &ftwhDate.Time
		}
		if tswhDate.Valid {
			r.TwentySixWeekHighDate = &tswhDate.Time
		}
		history = append(history, &r)
	}
	return history, rows.Err()
}

// TruncateIndicators deletes every indicator row
func (db *DB) TruncateIndicators() error {
	if _, err := db.conn.Exec(`TRUNCATE TABLE stockindicators`); err != nil {
		return fmt.Errorf("failed to truncate indicators: %w", err)
	}
	return nil
}

// KeepOnlyIndicatorDate deletes all indicator rows except those for the
// specified date. Returns the number of rows deleted.
func (db *DB) KeepOnlyIndicatorDate(keepDate time.Time) (int64, error) {
	query := `DELETE FROM stockindicators WHERE date <> $1`
	result, err := db.conn.Exec(query, keepDate)
	if err != nil {
		return 0, fmt.Errorf("failed to prune indicators: %w", err)
	}
	return result.RowsAffected()
}

// KeepOnlyLatestIndicators deletes all indicator rows except the most
// recent date's. A no-op on an empty table.
func (db *DB) KeepOnlyLatestIndicators() (int64, error) {
	var latest sql.NullTime
	if err := db.conn.QueryRow(`SELECT MAX(date) FROM stockindicators`).Scan(&latest); err != nil {
		return 0, fmt.Errorf("failed to get latest indicator date: %w", err)
	}
	if !latest.Valid {
		return 0, nil
	}
	return db.KeepOnlyIndicatorDate(latest.Time)
}
