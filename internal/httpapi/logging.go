package httpapi

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// zlog is an optional structured logger. If unset, the zerolog global
// logger is used.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

func logger() *zerolog.Logger {
	if zlog != nil {
		return zlog
	}
	return &log.Logger
}

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// read once; SetRequestLogLevel overrides
var defaultLogLevel = parseLevel(os.Getenv("MODELRT_REQUEST_LOG"))

// SetRequestLogLevel sets the default per-request log level
// (off, error, info, debug).
func SetRequestLogLevel(s string) { defaultLogLevel = parseLevel(s) }

func requestLogLevel(r *http.Request) LogLevel {
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

type logEvent = *zerolog.Event

// logRequest writes one request log line when the request's level allows it.
// Errors need LevelError, everything else LevelInfo. A zero start omits the
// duration.
func logRequest(r *http.Request, msg string, status int, start time.Time, err error, extra func(logEvent)) {
	lvl := requestLogLevel(r)
	if err != nil && lvl < LevelError || err == nil && lvl < LevelInfo {
		return
	}
	var e logEvent
	if err != nil {
		e = logger().Error().Err(err)
	} else {
		e = logger().Info()
	}
	e = e.Str("path", r.URL.Path)
	if status != 0 {
		e = e.Int("status", status)
	}
	if !start.IsZero() {
		e = e.Dur("dur", time.Since(start))
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		e = e.Str("request_id", rid)
	}
	if extra != nil {
		extra(e)
	}
	e.Msg(msg)
}
