package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bmorales/stock-indicator-service/internal/models"
)

// UpsertFundamentals inserts a fundamentals record or overwrites the
// existing one for that symbol, refreshing updated_at
func (db *DB) UpsertFundamentals(f *models.SymbolFundamentals) error {
	if err := validateSymbol(f.Symbol); err != nil {
		return err
	}

	query := `
		INSERT INTO stock_fundamentals (
			symbol, marketcap, fiftytwoweeklow, fiftytwoweekhigh,
			averagevolume, industry, sector, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol) DO UPDATE SET
			marketcap = EXCLUDED.marketcap,
			fiftytwoweeklow = EXCLUDED.fiftytwoweeklow,
			fiftytwoweekhigh = EXCLUDED.fiftytwoweekhigh,
			averagevolume = EXCLUDED.averagevolume,
			industry = EXCLUDED.industry,
			sector = EXCLUDED.sector,
			updated_at = EXCLUDED.updated_at
	`
	now := time.Now()

	var industry, sector sql.NullString
	if f.Industry != "" {
		industry = sql.NullString{String: f.Industry, Valid: true}
	}
	if f.Sector != "" {
		sector = sql.NullString{String: f.Sector, Valid: true}
	}

	_, err := db.conn.Exec(query,
		f.Symbol, f.MarketCap, f.FiftyTwoWeekLow, f.FiftyTwoWeekHigh,
		f.AverageVolume, industry, sector, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert fundamentals for %s: %w", f.Symbol, err)
	}
	f.UpdatedAt = now
	return nil
}

// GetFundamentals retrieves the current fundamentals snapshot for a symbol
func (db *DB) GetFundamentals(symbol string) (*models.SymbolFundamentals, error) {
	query := `
		SELECT symbol, marketcap, fiftytwoweeklow, fiftytwoweekhigh,
		       averagevolume, industry, sector, updated_at
		FROM stock_fundamentals
		WHERE symbol = $1
	`
	return db.scanSingleFundamentals(db.conn.QueryRow(query, symbol), symbol)
}

// GetFundamentalsBySector retrieves all fundamentals records in a sector
func (db *DB) GetFundamentalsBySector(sector string) ([]*models.SymbolFundamentals, error) {
	query := `
		SELECT symbol, marketcap, fiftytwoweeklow, fiftytwoweekhigh,
		       averagevolume, industry, sector, updated_at
		FROM stock_fundamentals
		WHERE sector = $1
		ORDER BY symbol ASC
	`
	rows, err := db.conn.Query(query, sector)
	if err != nil {
		return nil, fmt.Errorf("failed to get fundamentals by sector: %w", err)
	}
	defer rows.Close()

	return db.scanFundamentals(rows)
}

// GetAllFundamentalSymbols retrieves every symbol with a fundamentals record
func (db *DB) GetAllFundamentalSymbols() ([]string, error) {
	query := `SELECT symbol FROM stock_fundamentals ORDER BY symbol ASC`
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get fundamental symbols: %w", err)
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

// DeleteFundamentals removes the fundamentals record for a symbol
func (db *DB) DeleteFundamentals(symbol string) error {
	query := `DELETE FROM stock_fundamentals WHERE symbol = $1`
	result, err := db.conn.Exec(query, symbol)
	if err != nil {
		return fmt.Errorf("failed to delete fundamentals for %s: %w", symbol, err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("fundamentals for %s: %w", symbol, ErrNotFound)
	}
	return nil
}

func (db *DB) scanSingleFundamentals(row *sql.Row, symbol string) (*models.SymbolFundamentals, error) {
	var f models.SymbolFundamentals
	var marketCap, averageVolume sql.NullInt64
	var industry, sector sql.NullString

	err := row.Scan(
		&f.Symbol, &marketCap, &f.FiftyTwoWeekLow, &f.FiftyTwoWeekHigh,
		&averageVolume, &industry, &sector, &f.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("fundamentals for %s: %w", symbol, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fundamentals: %w", err)
	}

	if marketCap.Valid {
		f.MarketCap = &marketCap.Int64
	}
	if averageVolume.Valid {
		f.AverageVolume = &averageVolume.Int64
	}
	if industry.Valid {
		f.Industry = industry.String
	}
	if sector.Valid {
		f.Sector = sector.String
	}
	return &f, nil
}

func (db *DB) scanFundamentals(rows *sql.Rows) ([]*models.SymbolFundamentals, error) {
	var records []*models.SymbolFundamentals
	for rows.Next() {
		var f models.SymbolFundamentals
		var marketCap, averageVolume sql.NullInt64
		var industry, sector sql.NullString

		err := rows.Scan(
			&f.Symbol, &marketCap, &f.FiftyTwoWeekLow, &f.FiftyTwoWeekHigh,
			&averageVolume, &industry, &sector, &f.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fundamentals: %w", err)
		}

		if marketCap.Valid {
			f.MarketCap = &marketCap.Int64
		}
		if averageVolume.Valid {
			f.AverageVolume = &averageVolume.Int64
		}
		if industry.Valid {
			f.Industry = industry.String
		}
		if sector.Valid {
			f.Sector = sector.String
		}
		records = append(records, &f)
	}
	return records, rows.Err()
}
