package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for caller mistakes and lookups.
var (
	ErrEmptyCart               = errors.New("cart is empty")
	ErrMissingUser             = errors.New("user is required")
	ErrUnknownUser             = errors.New("user does not exist")
	ErrMissingRestaurant       = errors.New("restaurant is required")
	ErrOrderNotFound           = errors.New("order not found")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
)

// InvalidQuantityError indicates a cart line with a non-positive quantity.
type InvalidQuantityError struct {
	Index     int
	ProductID int64
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %d (line %d, got %d)", e.ProductID, e.Index, e.Quantity)
}

// ValidationError means the cart was rejected by a business rule: a line is
// unavailable or short on stock, or the request is outside service hours.
// Quote describes which rule failed; the caller should re-quote.
type ValidationError struct {
	Quote Quote
}

func (e *ValidationError) Error() string {
	failed := len(e.Quote.FailedLines())
	switch {
	case failed > 0 && !e.Quote.WithinServiceHours:
		return fmt.Sprintf("order rejected: %d invalid line(s), outside service hours", failed)
	case failed > 0:
		return fmt.Sprintf("order rejected: %d invalid line(s)", failed)
	default:
		return "order rejected: outside service hours"
	}
}

// PersistenceError wraps an infrastructure failure. Any partial writes were
// rolled back, so the operation is safe to retry.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// TransitionError is returned when an order cannot move to the requested
// status. Conflict is set when another writer changed the status first.
type TransitionError struct {
	OrderID  int64
	From     Status
	To       Status
	Conflict bool
}

func (e *TransitionError) Error() string {
	if e.Conflict {
		return fmt.Sprintf("order %d changed concurrently, now %s", e.OrderID, e.From)
	}
	return fmt.Sprintf("order %d cannot move from %s to %s", e.OrderID, e.From, e.To)
}

// stockConflictError aborts a commit transaction when a conditional
// decrement finds less stock than the fresh snapshot promised.
type stockConflictError struct {
	ProductID int64
}

func (e *stockConflictError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d", e.ProductID)
}

// Code is the failure class reported to callers.
type Code string

const (
	CodeEmptyCart          Code = "EMPTY_CART"
	CodeMissingUser        Code = "MISSING_USER"
	CodeValidationFailed   Code = "VALIDATION_FAILED"
	CodePersistenceFailed  Code = "PERSISTENCE_FAILED"
	CodeNotificationFailed Code = "NOTIFICATION_FAILED"
	CodeNotFound           Code = "NOT_FOUND"
	CodeInvalidTransition  Code = "INVALID_TRANSITION"
	CodeBadRequest         Code = "BAD_REQUEST"
)

// CodeOf classifies err. Unrecognised errors are reported as persistence
// failures.
func CodeOf(err error) Code {
	var (
		iqErr  *InvalidQuantityError
		valErr *ValidationError
		trErr  *TransitionError
	)
	switch {
	case errors.Is(err, ErrEmptyCart), errors.As(err, &iqErr):
		return CodeEmptyCart
	case errors.Is(err, ErrMissingUser), errors.Is(err, ErrUnknownUser):
		return CodeMissingUser
	case errors.As(err, &valErr):
		return CodeValidationFailed
	case errors.Is(err, ErrOrderNotFound):
		return CodeNotFound
	case errors.As(err, &trErr):
		return CodeInvalidTransition
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrMissingRestaurant), errors.Is(err, ErrDuplicateIdempotencyKey):
		return CodeBadRequest
	default:
		return CodePersistenceFailed
	}
}
