package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means no user identity could be resolved.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNotFound means no ledger exists for the requested key.
	ErrNotFound = errors.New("ledger not found")
	// ErrConflict means another writer updated the same key first.
	ErrConflict = errors.New("ledger write conflict")
)

// ValidationError reports a malformed or out-of-range input field.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IdentityMismatchError is returned when a stored ledger does not belong to
// the key it was looked up under.
type IdentityMismatchError struct {
	Expected Identity
	Actual   Identity
}

func (e *IdentityMismatchError) Error() string {
	return fmt.Sprintf("ledger identity mismatch: expected %s/%s, got %s/%s",
		e.Expected.UserID, e.Expected.MonthYear, e.Actual.UserID, e.Actual.MonthYear)
}

// StoreUnavailableError wraps an I/O failure against the ledger store.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("ledger store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStoreUnavailable reports whether err is (or wraps) a StoreUnavailableError.
func IsStoreUnavailable(err error) bool {
	var se *StoreUnavailableError
	return errors.As(err, &se)
}
