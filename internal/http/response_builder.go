// Package http serves the transaction lookup pages and the JSON API.
//
// Responses to HTMX requests are HTML fragments built with HTMXResponseBuilder;
// the /api routes answer with writeJSON.
package http

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	applog "aptprice/internal/log"
)

// HTMXResponseBuilder assembles a fragment response: status, the HX-Trigger
// events app.js listens for, and the HTML body.
type HTMXResponseBuilder struct {
	status int
	events map[string]any
	body   []byte
}

func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{status: http.StatusOK}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.status = code
	return b
}

// Trigger queues a client event; a later call with the same name replaces the detail.
func (b *HTMXResponseBuilder) Trigger(name string, detail any) *HTMXResponseBuilder {
	if b.events == nil {
		b.events = make(map[string]any)
	}
	b.events[name] = detail
	return b
}

// TriggerLookupCompleted tells the page a region/month table was rendered.
func (b *HTMXResponseBuilder) TriggerLookupCompleted(region, ym string, rows int) *HTMXResponseBuilder {
	return b.Trigger("lookup:completed", map[string]any{"region": region, "ym": ym, "rows": rows})
}

// TriggerHistoryLoaded tells the page a building trend was rendered.
func (b *HTMXResponseBuilder) TriggerHistoryLoaded(building string, rows, skipped int) *HTMXResponseBuilder {
	return b.Trigger("history:loaded", map[string]any{"building": building, "rows": rows, "skipped": skipped})
}

// NoticeLevel picks the style of a toast in #notifications.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
)

// Notice shows a toast. Warnings stay up twice as long.
func (b *HTMXResponseBuilder) Notice(level NoticeLevel, message string) *HTMXResponseBuilder {
	duration := 3000
	if level == NoticeWarning {
		duration = 6000
	}
	return b.Trigger("show-notification", map[string]any{
		"type":     string(level),
		"message":  message,
		"duration": duration,
	})
}

// HTML sets the fragment body.
func (b *HTMXResponseBuilder) HTML(body []byte) *HTMXResponseBuilder {
	b.body = body
	return b
}

func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	if len(b.events) > 0 {
		if payload, err := json.Marshal(b.events); err == nil {
			h.Set("HX-Trigger", asciiJSON(payload))
		}
	}
	w.WriteHeader(b.status)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// asciiJSON escapes non-ASCII runes as \uXXXX so JSON survives as a header value.
func asciiJSON(b []byte) string {
	var sb strings.Builder
	for _, r := range string(b) {
		switch {
		case r < utf8.RuneSelf:
			sb.WriteRune(r)
		case r > 0xFFFF:
			r1, r2 := utf16.EncodeRune(r)
			fmt.Fprintf(&sb, "\\u%04x\\u%04x", r1, r2)
		default:
			fmt.Fprintf(&sb, "\\u%04x", r)
		}
	}
	return sb.String()
}

// errorFragment is the bare alert used when no template can be rendered.
func errorFragment(status int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(status).
		HTML([]byte(`<div class="error" role="alert">` + template.HTMLEscapeString(message) + `</div>`))
}

// writeJSON encodes before the status is written; an encoding failure is
// logged and answered with 500.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed encoding JSON response",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpEncode,
			applog.FieldPath, r.URL.Path)
		status = http.StatusInternalServerError
		body = []byte(`{"error":"internal error","kind":"internal"}`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
