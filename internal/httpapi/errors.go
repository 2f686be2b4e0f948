package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"modelrt/internal/engine"
	"modelrt/internal/manager"
	"modelrt/internal/worker"
	"modelrt/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps worker error codes and typed runtime errors to HTTP statuses.
func statusFor(err error) int {
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode()
	}
	switch code := worker.ErrorCode(err); {
	case code == worker.CodeNotFound || manager.IsModelNotFound(err):
		return http.StatusNotFound
	case code == worker.CodeTooBusy || manager.IsTooBusy(err):
		IncrementBackpressure("too_busy")
		return http.StatusTooManyRequests
	case code == worker.CodeSessionUnavailable || manager.IsSessionUnavailable(err):
		return http.StatusServiceUnavailable
	case code == worker.CodeInvalidRequest || engine.IsInvalidOptions(err):
		return http.StatusBadRequest
	case code == worker.CodeCanceled || errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: status})
}
