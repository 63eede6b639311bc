package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrValidation    = errors.New("validation")     // 400
	ErrNotFound      = errors.New("not found")      // 404
	ErrForbidden     = errors.New("forbidden")      // 403
	ErrConflict      = errors.New("conflict")       // 409
	ErrTerminalState = errors.New("terminal state") // 400
)

// InsufficientStockError reports a failed reservation with the exact
// shortfall so callers can name the short product.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Available int
	Required  int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, required %d",
		e.ProductID, e.Available, e.Required)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrConflict
}
