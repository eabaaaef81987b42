package trace

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	m := NewMiddleware(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r)
		w.WriteHeader(http.StatusBadRequest)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))

	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("request id %q is not a uuid: %v", seen, err)
	}
	if rr.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("response header %q does not echo %q", rr.Header().Get(RequestIDHeader), seen)
	}
	if got := m.GetMetrics(); got.TotalRequests != 1 || got.ClientErrors != 1 || got.ServerErrors != 0 {
		t.Fatalf("unexpected metrics %+v", got)
	}
}

func TestMiddlewareKeepsUpstreamUUID(t *testing.T) {
	m := NewMiddleware(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	upstream := uuid.NewString()

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"uuid is kept", upstream, true},
		{"non-uuid is replaced", "abc<script>", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(RequestIDHeader, tt.incoming)
			h.ServeHTTP(httptest.NewRecorder(), req)

			if (seen == tt.incoming) != tt.keep {
				t.Fatalf("request id %q, incoming %q, keep=%v", seen, tt.incoming, tt.keep)
			}
		})
	}
}
