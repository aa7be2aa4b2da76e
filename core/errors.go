package core

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for comparison using errors.Is()
// These are generic errors that can be wrapped with additional context
var (
	// Backend resource errors
	ErrNotFound   = errors.New("resource not found")
	ErrValidation = errors.New("validation failed")
	ErrPayment    = errors.New("payment failed")

	// Transport errors
	ErrNetwork           = errors.New("network failure")
	ErrRequestFailed     = errors.New("request failed")
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")

	// Conflict is surfaced by the backend as a validation failure in
	// practice (stock changed between read and add), so it wraps
	// ErrValidation rather than standing alone.
	ErrConflict = fmt.Errorf("conflicting state: %w", ErrValidation)

	// Checkout state errors
	ErrEmptyCart    = errors.New("cart is empty")
	ErrIntentExists = errors.New("payment intent already created")
	ErrNotReady     = errors.New("checkout not ready for submission")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")
)

// StoreError provides structured error information with context.
// It implements the error interface and supports error wrapping.
type StoreError struct {
	Op      string // Operation that failed (e.g., "api.GetProduct")
	Kind    string // Error kind (e.g., "not_found", "validation", "network")
	ID      string // Optional ID of the entity involved
	Message string // Human-readable message, usually the backend detail payload
	Err     error  // Underlying error for wrapping
}

// Error returns the string representation of the error
func (e *StoreError) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
		}
		if e.Message != "" {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

// Unwrap returns the underlying error for use with errors.Is/As
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError
func NewStoreError(op, kind string, err error) *StoreError {
	return &StoreError{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// Detail extracts the backend-provided message from an error chain, or
// falls back to the plain error text. UI surfaces display this inline.
func Detail(err error) string {
	var se *StoreError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// IsNotFound checks if an error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if an error is a validation rejection (bad input,
// non-positive quantity, stock exceeded, stale-stock conflict)
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsPayment checks if an error came from the payment provider path
func IsPayment(err error) bool {
	return errors.Is(err, ErrPayment)
}

// IsRetryable checks if an error is retryable.
// Retryable errors are transient transport or availability issues;
// user errors (validation, not found, payment declines) never are.
func IsRetryable(err error) bool {
	if IsNotFound(err) || IsValidation(err) || IsPayment(err) {
		return false
	}
	return errors.Is(err, ErrNetwork) ||
		errors.Is(err, ErrRequestFailed) ||
		errors.Is(err, ErrMaxRetriesExceeded)
}

// IsConfigurationError checks if an error is configuration-related
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingConfiguration)
}
