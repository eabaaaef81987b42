package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"aptprice/internal/core"
	applog "aptprice/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports whether templates loaded and a source is wired.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.lookup == nil || s.history == nil {
		checks["backend"] = "not_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["backend"] = map[string]any{"type": s.backend, "status": "ok"}
	}

	if s.cache != nil {
		st := s.cache.Stats()
		checks["cache"] = map[string]any{
			"entries": st.Size,
			"hits":    st.Hits,
			"misses":  st.Misses,
			"status":  "ok",
		}
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, r, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides request, security and cache counters in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	var buf bytes.Buffer
	metric := func(name, help, kind string, value any) {
		fmt.Fprintf(&buf, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}

	metric("http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests)
	metric("http_request_duration_avg_microseconds", "Average request duration", "gauge", traceMetrics.AverageResponseTime)
	metric("http_client_errors_total", "Responses with a 4xx status", "counter", traceMetrics.ClientErrors)
	metric("http_server_errors_total", "Responses with a 5xx status", "counter", traceMetrics.ServerErrors)
	metric("rate_limit_hits_total", "Requests rejected by the rate limiter", "counter", rateLimitMetrics.TotalHits)
	metric("rate_limit_active_clients", "Clients tracked by the rate limiter", "gauge", rateLimitMetrics.ClientCount)
	metric("security_suspicious_requests_total", "Requests flagged as suspicious", "counter", securityMetrics.SuspiciousRequests)
	if s.cache != nil {
		st := s.cache.Stats()
		metric("fetch_cache_entries", "Memoized fetch results", "gauge", st.Size)
		metric("fetch_cache_hits_total", "Fetches served from cache", "counter", st.Hits)
		metric("fetch_cache_misses_total", "Fetches sent to the source", "counter", st.Misses)
	}
	metric("uptime_seconds", "Seconds since start", "gauge", int64(time.Since(s.started).Seconds()))

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	if isHTMX(r) || r.Method == http.MethodPost {
		errorFragment(http.StatusTooManyRequests, "요청이 너무 많습니다. 잠시 후 다시 시도하세요.").Write(w)
		return
	}
	writeJSON(w, r, http.StatusTooManyRequests, errorView{Error: "rate limit exceeded", Kind: "rate_limited"})
}

func (s *Server) newIndexView() indexView {
	return indexView{
		Presets:       districtPresets,
		DefaultMonth:  core.YearMonthOf(time.Now()).AddMonths(-1).Label(),
		HasServerKey:  s.defaultKey != "",
		HistoryMonths: s.historyMonths,
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, NewHTMXResponse(), "index.html", s.newIndexView())
}

// render executes name into a buffer first so a template failure yields a
// clean 500 instead of a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	logger := applog.FromContext(r.Context())
	if s.templates == nil {
		logger.ErrorContext(r.Context(), "Templates not loaded", applog.FieldPath, r.URL.Path)
		errorFragment(http.StatusInternalServerError, "templates not loaded").Write(w)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		logger.ErrorContext(r.Context(), "Template execution failed",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpRender,
			"template", name)
		errorFragment(http.StatusInternalServerError, "화면을 그리는 중 오류가 발생했습니다").Write(w)
		return
	}
	b.HTML(buf.Bytes()).Write(w)
}

// renderResult sends a partial to HTMX callers and the whole page otherwise.
func (s *Server) renderResult(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, partial string, data any, fill func(*indexView)) {
	if isHTMX(r) {
		s.render(w, r, b, partial, data)
		return
	}
	view := s.newIndexView()
	fill(&view)
	s.render(w, r, b, "index.html", view)
}

// logFailure records request failures; upstream and internal ones at error level.
func logFailure(ctx context.Context, msg string, ev errorView, query core.TransactionQuery) {
	logger := applog.FromContext(ctx)
	args := []any{
		applog.FieldRegion, query.RegionCode,
		applog.FieldDealYMD, query.YearMonth.String(),
		applog.FieldErrorKind, ev.Kind,
		applog.FieldError, ev.Error,
	}
	if ev.Status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, msg, args...)
		return
	}
	logger.WarnContext(ctx, msg, args...)
}

func truncationNotice(shown, total int) string {
	return fmt.Sprintf("전체 %s건 중 %s건만 표시됩니다", humanize.Comma(int64(total)), humanize.Comma(int64(shown)))
}
