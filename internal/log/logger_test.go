package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("%q expected %v, got %v (err=%v)", in, want, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestParseFormat(t *testing.T) {
	for _, in := range []string{"text", "JSON", "tint", ""} {
		if _, err := ParseFormat(in); err != nil {
			t.Fatalf("%q unexpected error: %v", in, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Format: FormatJSON, Writer: &buf, Component: ComponentRTMS})
	logger.Info("fetched", FieldRegion, "11680")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json log line %q: %v", buf.String(), err)
	}
	if entry[FieldComponent] != ComponentRTMS || entry[FieldRegion] != "11680" {
		t.Fatalf("unexpected log entry %v", entry)
	}
}

func TestMiddlewareAndFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: FormatText, Writer: &buf})

	var got *Logger
	h := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = FromContext(r.Context())
			got.Info("inside")
		})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got == nil {
		t.Fatalf("expected logger in context")
	}
	if !strings.Contains(buf.String(), "request_id=req-1") {
		t.Fatalf("expected request id in log output, got %q", buf.String())
	}

	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatalf("expected fallback logger")
	}
}

func TestStructuredLoggerLookup(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: FormatText, Writer: &buf}))

	sl.LogLookup(context.Background(), "11680", "202310", 0, 12, errors.New("boom"), "transport")
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "error_kind=transport") {
		t.Fatalf("unexpected lookup log %q", out)
	}
}
