package httpapi

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":      LevelOff,
		"off":   LevelOff,
		"error": LevelError,
		"info":  LevelInfo,
		"debug": LevelDebug,
		"weird": LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestLogLevelOverrides(t *testing.T) {
	defer SetRequestLogLevel("")
	SetRequestLogLevel("error")
	if got := requestLogLevel(httptest.NewRequest("GET", "/x", nil)); got != LevelError {
		t.Fatalf("default level: %v", got)
	}
	if got := requestLogLevel(httptest.NewRequest("GET", "/x?log=debug", nil)); got != LevelDebug {
		t.Fatalf("query override failed: %v", got)
	}
	if got := requestLogLevel(httptest.NewRequest("GET", "/x?log=1", nil)); got != LevelDebug {
		t.Fatalf("short query override failed: %v", got)
	}
	r := httptest.NewRequest("GET", "/x", nil)
	r.Header.Set("X-Log-Level", "info")
	if got := requestLogLevel(r); got != LevelInfo {
		t.Fatalf("header override failed: %v", got)
	}
}

func TestLogRequestGating(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	defer func() { zlog = nil }()
	defer SetRequestLogLevel("")

	SetRequestLogLevel("error")
	r := httptest.NewRequest("POST", "/generate", nil)
	logRequest(r, "generate end", 200, time.Now(), nil, nil)
	if buf.Len() != 0 {
		t.Fatalf("info line logged at error level: %q", buf.String())
	}
	logRequest(r, "generate end", 500, time.Now(), errors.New("boom"), func(e logEvent) { e.Str("model", "m") })
	out := buf.String()
	for _, want := range []string{`"level":"error"`, `"status":500`, `"model":"m"`, `"error":"boom"`, `"path":"/generate"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %q", want, out)
		}
	}
}
