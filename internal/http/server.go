package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"aptprice/internal/cache"
	applog "aptprice/internal/log"
	"aptprice/internal/middleware/ratelimit"
	"aptprice/internal/middleware/security"
	"aptprice/internal/middleware/trace"
	"aptprice/internal/services"
	appweb "aptprice/web"
)

// CacheStatter exposes fetch cache counters for readiness and metrics.
type CacheStatter interface {
	Stats() cache.Stats
}

// Options wires the server to its services.
type Options struct {
	Addr    string
	Lookup  *services.LookupService
	History *services.HistoryService
	Cache   CacheStatter
	Backend string

	// DefaultCredential is used when a request carries no service key.
	DefaultCredential  string
	HistoryMonths      int
	RateLimitPerMinute int
	Logger             *applog.Logger
}

// Server serves the lookup UI and its JSON equivalents.
type Server struct {
	http.Server

	templates *template.Template
	lookup    *services.LookupService
	history   *services.HistoryService
	cache     CacheStatter
	backend   string

	defaultKey    string
	historyMonths int

	rateLimiter     *ratelimit.Limiter
	detector        *security.Detector
	traceMiddleware *trace.Middleware
	logger          *applog.Logger

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	historyMonths := opts.HistoryMonths
	if historyMonths < 1 {
		historyMonths = services.DefaultHistoryMonths
	}

	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			// History walks up to MaxHistoryMonths sequential upstream calls.
			WriteTimeout: 10 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		lookup:        opts.Lookup,
		history:       opts.History,
		cache:         opts.Cache,
		backend:       opts.Backend,
		defaultKey:    opts.DefaultCredential,
		historyMonths: historyMonths,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		detector: security.NewDetector(logger.Slog()),
		logger:   logger,
		started:  time.Now(),
	}
	s.traceMiddleware = trace.NewMiddleware(s.detector.ExtractClientIP, logger.Slog())

	t, err := template.New("pages").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.traceMiddleware.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(applog.Middleware(s.logger))
	r.Use(applog.RequestIDMiddleware(trace.RequestID))
	r.Use(s.detector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.Handle("/static/*", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	limited := s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	r.With(limited).Post("/lookup", s.handleLookup)
	r.With(limited).Post("/history", s.handleHistory)

	r.Route("/api", func(r chi.Router) {
		r.Get("/transactions", s.handleAPITransactions)
		r.With(limited).Get("/history", s.handleAPIHistory)
	})

	return r
}

// Shutdown stops the rate limiter sweeper and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
