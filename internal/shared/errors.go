package shared

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates a referenced party, order, payment or credit note
// does not exist (or was hard-deleted).
var ErrNotFound = errors.New("not found")

// ValidationError indicates malformed input. Surfaced verbatim to the
// caller and never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "validation: " + e.Msg }

// Validationf builds a ValidationError.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConflictError indicates the request lost a race or exceeded a recomputed
// ceiling. The caller must re-fetch state and retry with corrected input;
// the engine never clamps silently.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return "conflict: " + e.Msg }

// Conflictf builds a ConflictError.
func Conflictf(format string, args ...any) error {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// ConsistencyError indicates stored state violates a ledger invariant.
// It signals a bug, not a user mistake, and is surfaced as an internal
// error after logging.
type ConsistencyError struct {
	Msg string
}

func (e *ConsistencyError) Error() string { return "consistency: " + e.Msg }

// Consistencyf builds a ConsistencyError.
func Consistencyf(format string, args ...any) error {
	return &ConsistencyError{Msg: fmt.Sprintf(format, args...)}
}

// IsConsistency reports whether err is a ConsistencyError.
func IsConsistency(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}
