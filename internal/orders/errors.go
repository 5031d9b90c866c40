package orders

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrProductNotFound    = errors.New("product not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrOrderNotFound      = errors.New("order not found")
	ErrNoFieldsProvided   = errors.New("no update fields provided")
	ErrIllegalTransition  = errors.New("illegal status transition")
	ErrTransactionAborted = errors.New("transaction aborted")
)

// ProductError names the product that made a placement fail.
type ProductError struct {
	ProductID int64
	Requested int
	Available int
	Err       error
}

func (e *ProductError) Error() string {
	if errors.Is(e.Err, ErrInsufficientStock) {
		return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
			e.ProductID, e.Requested, e.Available)
	}
	return fmt.Sprintf("%v: %d", e.Err, e.ProductID)
}

func (e *ProductError) Unwrap() error { return e.Err }

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

var domainErrors = []error{
	ErrValidation,
	ErrProductNotFound,
	ErrInsufficientStock,
	ErrOrderNotFound,
	ErrNoFieldsProvided,
	ErrIllegalTransition,
	ErrTransactionAborted,
}

// classify passes domain errors through and turns anything else that escaped a
// transaction (driver, commit, cancelled context) into ErrTransactionAborted.
func classify(err error) error {
	for _, known := range domainErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrTransactionAborted, err)
}

type TransitionError struct {
	OrderID int64
	From    Status
	To      Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %d: cannot move from %s to %s", e.OrderID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }
