package worker

import (
	"context"
	"errors"

	"modelrt/internal/engine"
	"modelrt/internal/manager"
	"modelrt/internal/service"
)

// Error codes carried in Reply.Code.
const (
	CodeNotFound           = "not_found"
	CodeLoadFailure        = "load_failure"
	CodeSessionUnavailable = "session_unavailable"
	CodeTooBusy            = "too_busy"
	CodeInferenceOutput    = "inference_output"
	CodeInvalidRequest     = "invalid_request"
	CodeCanceled           = "canceled"
	CodeInternal           = "internal"
)

// RemoteError is an error returned by the worker for a call.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

// ErrorCode returns the remote code of err, or "" when err did not come
// from the worker.
func ErrorCode(err error) string {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// codeFor classifies a service error for the wire.
func codeFor(err error) string {
	switch {
	case manager.IsModelNotFound(err):
		return CodeNotFound
	case manager.IsLoadFailure(err):
		return CodeLoadFailure
	case manager.IsSessionUnavailable(err):
		return CodeSessionUnavailable
	case manager.IsTooBusy(err):
		return CodeTooBusy
	case engine.IsInferenceOutput(err):
		return CodeInferenceOutput
	case engine.IsInvalidOptions(err), service.IsInvalidKind(err), errors.Is(err, errBadParams), errors.Is(err, errUnknownMethod):
		return CodeInvalidRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCanceled
	default:
		return CodeInternal
	}
}

var (
	errBadParams     = errors.New("bad params")
	errUnknownMethod = errors.New("unknown method")
)
