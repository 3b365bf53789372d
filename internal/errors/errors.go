// Package errors provides the error taxonomy for the sentiment alert pipeline.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrUpstreamUnavailable = errors.New("sentiment upstream unavailable")
	ErrInvalidResponse     = errors.New("invalid sentiment response")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrChannelFailure      = errors.New("notification channel failure")
	ErrConfigInvalid       = errors.New("invalid configuration")
	ErrCycleInFlight       = errors.New("check cycle already in flight")
	ErrTimeout             = errors.New("operation timed out")
)

// UpstreamError represents a failed call to the sentiment source.
type UpstreamError struct {
	Ticker string
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream error [%s] status %d: %v", e.Ticker, e.Status, e.Err)
	}
	return fmt.Sprintf("upstream error [%s]: %v", e.Ticker, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError creates a new UpstreamError.
func NewUpstreamError(ticker string, status int, err error) *UpstreamError {
	return &UpstreamError{
		Ticker: ticker,
		Status: status,
		Err:    err,
	}
}

// StoreError represents a failure in the cooldown or history store.
type StoreError struct {
	Store string
	Op    string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error [%s] %s: %v", e.Store, e.Op, e.Err)
}

// Unwrap returns both the cause and ErrStoreUnavailable so callers can
// classify with errors.Is regardless of the backend error.
func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

// NewStoreError creates a new StoreError.
func NewStoreError(store, op string, err error) *StoreError {
	return &StoreError{
		Store: store,
		Op:    op,
		Err:   err,
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrConfigInvalid
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Kind returns a short label for the taxonomy bucket err falls into.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrChannelFailure):
		return "channel_failure"
	case errors.Is(err, ErrConfigInvalid):
		return "config_invalid"
	default:
		return "unknown"
	}
}
