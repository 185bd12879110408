package shared

import (
	"errors"
	"fmt"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
)

var (
	// ErrNotFound indicates the requested sales document does not exist.
	ErrNotFound = fmt.Errorf("sales: %w", httpx.ErrNotFound)
	// ErrInvalidStatus indicates a workflow transition that the current status forbids.
	ErrInvalidStatus = fmt.Errorf("sales: invalid status transition: %w", httpx.ErrConflict)
	// ErrImmutable indicates a change to a document that is already final.
	ErrImmutable = fmt.Errorf("sales: document is final and cannot be changed: %w", httpx.ErrConflict)
	// ErrNothingToReceipt indicates a receipt was requested for an edit without a positive deposit.
	ErrNothingToReceipt = fmt.Errorf("sales: edit carries no deposit to receipt: %w", httpx.ErrUnprocessable)
)

// ValidationError reports a malformed line item or document field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// Unwrap exposes the HTTP validation sentinel.
func (e *ValidationError) Unwrap() error {
	return httpx.ErrValidation
}

// DepositRejectedError carries the guard's human readable refusal.
type DepositRejectedError struct {
	Reason string
}

func (e *DepositRejectedError) Error() string {
	return "deposit rejected: " + e.Reason
}

// Unwrap exposes the HTTP rejection sentinel.
func (e *DepositRejectedError) Unwrap() error {
	return httpx.ErrUnprocessable
}

// IsDepositRejected reports whether err carries a guard refusal.
func IsDepositRejected(err error) bool {
	var rejected *DepositRejectedError
	return errors.As(err, &rejected)
}
