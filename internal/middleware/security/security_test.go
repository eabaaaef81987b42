package security

import (
	"crypto/tls"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func quietDetector() *Detector {
	return NewDetector(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestExtractClientIP(t *testing.T) {
	d := quietDetector()
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"direct public peer ignores headers", "203.0.113.7:4000", map[string]string{"X-Forwarded-For": "1.2.3.4"}, "203.0.113.7"},
		{"trusted proxy uses first forwarded", "10.0.0.2:80", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.2"}, "198.51.100.1"},
		{"trusted proxy falls back to X-Real-IP", "127.0.0.1:80", map[string]string{"X-Real-IP": "198.51.100.9"}, "198.51.100.9"},
		{"garbage forwarded value ignored", "192.168.1.1:80", map[string]string{"X-Forwarded-For": "not-an-ip"}, "192.168.1.1"},
		{"remote addr without port", "203.0.113.8", nil, "203.0.113.8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := d.ExtractClientIP(r); got != tt.want {
				t.Fatalf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectSuspiciousRequest(t *testing.T) {
	d := quietDetector()
	tests := []struct {
		name   string
		method string
		target string
		ua     string
		want   string
	}{
		{"ordinary lookup", http.MethodGet, "/api/transactions?region=11680&ym=202310", "curl/8.0", ""},
		{"path traversal", http.MethodGet, "/static/../../etc/passwd", "", "pattern"},
		{"scanner agent", http.MethodGet, "/", "sqlmap/1.7", "user_agent"},
		{"trace method", "TRACE", "/", "", "method"},
		{"long url", http.MethodGet, "/?q=" + strings.Repeat("a", 2100), "", "url_length"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "http://example.com/", nil)
			r.URL.Path, r.URL.RawQuery, _ = strings.Cut(tt.target, "?")
			r.Header.Set("User-Agent", tt.ua)
			if got := d.DetectSuspiciousRequest(r); got != tt.want {
				t.Fatalf("DetectSuspiciousRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectorMiddlewareBlocksUnusualMethods(t *testing.T) {
	d := quietDetector()
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("TRACE", "/", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/.env", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("suspicious GET should pass through, got %d", rr.Code)
	}
	if m := d.GetMetrics(); m.SuspiciousRequests != 2 || m.BlockedRequests != 1 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	csp := rr.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "script-src 'self' https://unpkg.com https://cdn.jsdelivr.net") ||
		!strings.Contains(csp, "frame-ancestors 'none'") {
		t.Fatalf("unexpected CSP %q", csp)
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("missing X-Frame-Options")
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS must only be sent over TLS")
	}
	if rr.Header().Get("Cache-Control") != "" {
		t.Fatalf("index page should be cacheable")
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Fatalf("HSTS=%q", got)
	}
}

func TestHeadersNoStoreForKeyedRequests(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	tests := []struct {
		method, path string
		want         string
	}{
		{http.MethodPost, "/lookup", "no-store"},
		{http.MethodPost, "/history", "no-store"},
		{http.MethodGet, "/api/transactions", "no-store"},
		{http.MethodGet, "/healthz", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			if got := rr.Header().Get("Cache-Control"); got != tt.want {
				t.Fatalf("Cache-Control=%q want %q", got, tt.want)
			}
		})
	}
}

func TestEmptyHeaderValuesOmitted(t *testing.T) {
	cfg := DefaultHeadersConfig()
	cfg.FrameOptions = ""
	cfg.ScriptOrigins = nil
	h := NewHeadersMiddleware(cfg).Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if _, ok := rr.Header()["X-Frame-Options"]; ok {
		t.Fatal("empty X-Frame-Options should not be sent")
	}
	if csp := rr.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "script-src 'self';") {
		t.Fatalf("CSP=%q", csp)
	}
}
