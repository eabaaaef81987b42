package security

import (
	"net/http"
	"strconv"
	"strings"
)

// Script origins the pages load from: htmx and Chart.js.
var DefaultScriptOrigins = []string{"https://unpkg.com", "https://cdn.jsdelivr.net"}

// HeadersConfig selects the response headers. Empty strings are not sent.
type HeadersConfig struct {
	ScriptOrigins []string

	// HSTSMaxAge in seconds; sent over TLS only.
	HSTSMaxAge int

	FrameOptions      string
	ReferrerPolicy    string
	PermissionsPolicy string
	OpenerPolicy      string
	ResourcePolicy    string

	// NoStorePaths prefixes whose responses must not be cached by the
	// browser or a proxy, because the request may carry a service key.
	NoStorePaths []string
}

// DefaultHeadersConfig allows scripts from the CDNs in DefaultScriptOrigins
// and nothing else off-site.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		ScriptOrigins:     DefaultScriptOrigins,
		HSTSMaxAge:        365 * 24 * 60 * 60,
		FrameOptions:      "DENY",
		ReferrerPolicy:    "no-referrer",
		PermissionsPolicy: "geolocation=(), microphone=(), camera=(), payment=()",
		OpenerPolicy:      "same-origin",
		ResourcePolicy:    "same-origin",
		NoStorePaths:      []string{"/lookup", "/history", "/api/"},
	}
}

// ContentSecurityPolicy renders the policy for the configured script origins.
func (c HeadersConfig) ContentSecurityPolicy() string {
	script := append([]string{"'self'"}, c.ScriptOrigins...)
	directives := [][2]string{
		{"default-src", "'self'"},
		{"script-src", strings.Join(script, " ")},
		{"style-src", "'self' 'unsafe-inline'"},
		{"img-src", "'self' data:"},
		{"connect-src", "'self'"},
		{"object-src", "'none'"},
		{"frame-ancestors", "'none'"},
		{"base-uri", "'self'"},
		{"form-action", "'self'"},
	}
	parts := make([]string, len(directives))
	for i, d := range directives {
		parts[i] = d[0] + " " + d[1]
	}
	return strings.Join(parts, "; ")
}

// HeadersMiddleware applies the configured headers to every response.
type HeadersMiddleware struct {
	static  map[string]string
	hsts    string
	noStore []string
}

func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	static := map[string]string{
		"X-Content-Type-Options":       "nosniff",
		"Content-Security-Policy":      config.ContentSecurityPolicy(),
		"X-Frame-Options":              config.FrameOptions,
		"Referrer-Policy":              config.ReferrerPolicy,
		"Permissions-Policy":           config.PermissionsPolicy,
		"Cross-Origin-Opener-Policy":   config.OpenerPolicy,
		"Cross-Origin-Resource-Policy": config.ResourcePolicy,
	}
	for k, v := range static {
		if v == "" {
			delete(static, k)
		}
	}

	var hsts string
	if config.HSTSMaxAge > 0 {
		hsts = "max-age=" + strconv.Itoa(config.HSTSMaxAge) + "; includeSubDomains"
	}
	return &HeadersMiddleware{static: static, hsts: hsts, noStore: config.NoStorePaths}
}

func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		for k, v := range h.static {
			headers.Set(k, v)
		}
		if r.TLS != nil && h.hsts != "" {
			headers.Set("Strict-Transport-Security", h.hsts)
		}
		for _, prefix := range h.noStore {
			if strings.HasPrefix(r.URL.Path, prefix) {
				headers.Set("Cache-Control", "no-store")
				break
			}
		}
		next.ServeHTTP(w, r)
	})
}

// StaticAssetMiddleware lets browsers cache embedded assets for maxAge seconds.
func StaticAssetMiddleware(maxAge int) func(http.Handler) http.Handler {
	value := "public, max-age=" + strconv.Itoa(maxAge)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxAge > 0 {
				w.Header().Set("Cache-Control", value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
