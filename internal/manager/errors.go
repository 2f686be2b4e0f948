package manager

import (
	"errors"
	"fmt"
)

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ modelID string }

func (e tooBusyError) Error() string { return "too busy: " + e.modelID }

// ErrTooBusy constructs a tooBusyError.
func ErrTooBusy(id string) error { return tooBusyError{modelID: id} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

// modelNotFoundError is returned when a requested model id is not present in the catalog.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// loadFailureError wraps a backend allocation failure. Loads that fail this
// way leave nothing registered and may be retried.
type loadFailureError struct {
	id  string
	err error
}

func (e loadFailureError) Error() string { return "load " + e.id + ": " + e.err.Error() }

func (e loadFailureError) Unwrap() error { return e.err }

// ErrLoadFailure constructs a loadFailureError.
func ErrLoadFailure(id string, err error) error { return loadFailureError{id: id, err: err} }

// IsLoadFailure reports whether err is a backend allocation failure.
func IsLoadFailure(err error) bool {
	var e loadFailureError
	return errors.As(err, &e)
}

// sessionUnavailableError signals that no usable session exists for the id:
// it was never loaded, has been released, or is draining.
type sessionUnavailableError struct {
	id     string
	reason string
}

func (e sessionUnavailableError) Error() string {
	msg := "session unavailable: " + e.id
	if e.reason != "" {
		msg += " (" + e.reason + ")"
	}
	return msg
}

// ErrSessionUnavailable constructs a sessionUnavailableError.
func ErrSessionUnavailable(id, reason string) error {
	return sessionUnavailableError{id: id, reason: reason}
}

// IsSessionUnavailable reports whether err indicates a missing or released session.
func IsSessionUnavailable(err error) bool {
	var e sessionUnavailableError
	return errors.As(err, &e)
}

// panicError carries a recovered panic value as an error.
type panicError struct{ val any }

func (e panicError) Error() string { return fmt.Sprintf("panic: %v", e.val) }
