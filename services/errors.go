package services

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")

	// ErrInvalidSignature means the gateway signature check failed. Always
	// fatal for the call; never skipped.
	ErrInvalidSignature = errors.New("payment signature verification failed")

	// ErrCannotResolveUser means a recovery had no email to attach the
	// payment to, neither explicit nor in the gateway record.
	ErrCannotResolveUser = errors.New("cannot resolve user for payment")

	// ErrInventoryContention means repeated compare-and-swap attempts lost
	// to concurrent writers. Callers may retry the whole operation.
	ErrInventoryContention = errors.New("inventory update contention")
)

// ValidationError is malformed or missing input. Surfaced verbatim, never
// retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// InsufficientStockError carries the shortfall so the caller can show what
// is actually left.
type InsufficientStockError struct {
	ProductID string
	Size      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s size %s: requested %d, available %d",
		e.ProductID, e.Size, e.Requested, e.Available)
}

// CouponRejectedError is a business-rule refusal of a coupon code.
type CouponRejectedError struct {
	Code   string
	Reason string
}

func (e *CouponRejectedError) Error() string {
	return fmt.Sprintf("coupon %s rejected: %s", e.Code, e.Reason)
}
