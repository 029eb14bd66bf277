package database

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/bmorales/stock-indicator-service/internal/models"
)

// Store error kinds. Callers match with errors.Is.
var (
	// ErrNotFound indicates a lookup miss.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEntry indicates an insert collided with an existing row
	// and the caller did not request an overwrite.
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrConstraintViolation indicates a malformed identity field.
	ErrConstraintViolation = errors.New("constraint violation")
)

// validateSymbol enforces the identity constraint shared by all stores:
// non-empty, at most MaxSymbolLength characters.
func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol must not be empty: %w", ErrConstraintViolation)
	}
	if len(symbol) > models.MaxSymbolLength {
		return fmt.Errorf("symbol %q exceeds %d characters: %w", symbol, models.MaxSymbolLength, ErrConstraintViolation)
	}
	return nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
