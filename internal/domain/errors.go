package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Services wrap these with context via fmt.Errorf("...: %w", ...)
// and the HTTP layer maps them to status codes with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrInsufficientStock is a subtype of ErrConflict: a reservation or cart
	// write asked for more units than the ledger has available.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// InsufficientStockError carries the numbers the caller needs to render a
// useful message. Matches both ErrInsufficientStock and ErrConflict.
type InsufficientStockError struct {
	SKUID     int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for sku %d: available %d, requested %d",
		e.SKUID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock || target == ErrConflict
}
