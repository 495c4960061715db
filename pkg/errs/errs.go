package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrTransient marks network failures that are retried on the next sync.
	ErrTransient = errors.New("calendar temporarily unreachable")
	// ErrAuthExpired is returned when the calendar credential is invalid or revoked.
	ErrAuthExpired = errors.New("calendar authorization expired, run 'timebox auth'")
	// ErrValidation is returned before any mutation when input is rejected.
	ErrValidation = errors.New("invalid input")
	// ErrPersistence wraps failed writes to the persistence adapter.
	ErrPersistence = errors.New("failed to save changes")
	// ErrReadOnly is returned when an interaction targets a read-only calendar entry.
	ErrReadOnly = errors.New("entry is read-only")
	// ErrNotFound is returned when an id does not resolve.
	ErrNotFound = errors.New("not found")
)

// Validationf builds an ErrValidation with a message.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Transient wraps err as ErrTransient.
func Transient(err error) error {
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

// AuthExpired wraps err as ErrAuthExpired.
func AuthExpired(err error) error {
	return fmt.Errorf("%w: %v", ErrAuthExpired, err)
}

// Persistence wraps a failed write of op.
func Persistence(op string, err error) error {
	return fmt.Errorf("%w (%s): %v", ErrPersistence, op, err)
}

// Kind returns a short name for the taxonomy bucket err falls into.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthExpired):
		return "auth_expired"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrReadOnly):
		return "read_only"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}

// UserVisible reports whether err must always be shown to the user.
// Transient failures are kept low-key.
func UserVisible(err error) bool {
	switch Kind(err) {
	case "", "transient":
		return false
	default:
		return true
	}
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}
