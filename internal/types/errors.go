package types

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a referenced document or record that does not exist.
// It is surfaced to the caller as a client-visible failure.
var ErrNotFound = errors.New("not found")

// ValidationError reports malformed caller input: a wrong vector dimension,
// an empty required field, mismatched slice lengths. It is always surfaced
// to the caller and never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ProviderError reports a failed embedding or completion provider call. The
// underlying error is carried unmodified; no retry happens at the client
// layer, retry policy belongs to the caller.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
