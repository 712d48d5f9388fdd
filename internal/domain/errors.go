package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure: no infrastructure dependency.

var (
	// Activation errors
	ErrUnknownEvent = errors.New("unknown activation event")

	// Streak errors
	ErrInsufficientTokens = errors.New("no streak freeze tokens available")
	ErrDayAlreadyCounted  = errors.New("today already counts toward the streak")
	ErrStreakBroken       = errors.New("streak already broken")
	ErrInvalidTimeZone    = errors.New("invalid time zone")
	ErrInvalidTokenCount  = errors.New("token count must be positive")

	// Input errors
	ErrInvalidID = errors.New("user or session id required")

	// Storage errors
	ErrNotFound = errors.New("state not found")
	ErrConflict = errors.New("concurrent update conflict")
)

// StorageError wraps a persistence failure. The engine transition that
// preceded it already succeeded, so callers may retry the save as-is.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err unless it is nil or already a domain storage outcome.
func NewStorageError(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorageError reports whether err is a (retryable) backend failure.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
