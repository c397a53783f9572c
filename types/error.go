package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures for callers. Lower-level anomalies
// (planning fallbacks, dropped samples, neutral rerank signals) are absorbed
// locally and never reach the caller as errors; a Kind only surfaces when no
// usable result exists at all.
type ErrorKind string

const (
	KindValidation ErrorKind = "VALIDATION" // malformed question/options, rejected before work begins
	KindRetrieval  ErrorKind = "RETRIEVAL"  // embedding or index failure
	KindPlanning   ErrorKind = "PLANNING"   // decomposition produced an unusable plan (normally recovered)
	KindGeneration ErrorKind = "GENERATION" // all samples for a query failed
	KindStorage    ErrorKind = "STORAGE"    // snapshot persistence failure
	KindProvider   ErrorKind = "PROVIDER"   // upstream LLM/embedding provider error
	KindInternal   ErrorKind = "INTERNAL"
)

// Error is the single structured error surfaced to callers.
type Error struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// NewError creates an Error with the given kind and message.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates an Error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithCause attaches the underlying error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// KindOf extracts the kind from an error chain, or "" for plain errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether the error chain is marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
