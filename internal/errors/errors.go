package errors

import (
	"errors"
	"fmt"
)

// SiftError is the structured error type used throughout skysift.
type SiftError struct {
	// Code is the machine-readable error code (e.g. ERR_201_VOCAB_CORRUPT).
	Code string
	// Message is the human-readable error description.
	Message string
	// Category classifies the error for handling decisions.
	Category Category
	// Severity indicates how the caller should react.
	Severity Severity
	// Retryable reports whether the failed operation may be retried.
	Retryable bool
	// Context carries structured details for logging.
	Context map[string]any
	// Cause is the wrapped underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *SiftError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is / errors.As chains.
func (e *SiftError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a structured detail to the error and returns it.
func (e *SiftError) WithContext(key string, value any) *SiftError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// IsFatal reports whether the error requires aborting the current operation.
func (e *SiftError) IsFatal() bool {
	return e.Severity == SeverityFatal
}

// New creates a SiftError with the given code and message.
func New(code, message string) *SiftError {
	return &SiftError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Retryable: isRetryableCode(code),
	}
}

// Newf creates a SiftError with a formatted message.
func Newf(code, format string, args ...any) *SiftError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates a SiftError wrapping an underlying cause.
func Wrap(err error, code, message string) *SiftError {
	se := New(code, message)
	se.Cause = err
	return se
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code, format string, args ...any) *SiftError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// CodeOf returns the error code if err is (or wraps) a SiftError,
// otherwise ERR_501_INTERNAL.
func CodeOf(err error) string {
	var se *SiftError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// IsRetryable reports whether err is a retryable SiftError.
func IsRetryable(err error) bool {
	var se *SiftError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// Is re-exports errors.Is so callers need a single errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As re-exports errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}
