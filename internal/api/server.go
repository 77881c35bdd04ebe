// Package api implements the HTTP layer for the M-Shauri counselor.
// Handlers are methods on *Server. Each handler file is responsible for one
// resource group and only imports the dependencies it actually uses.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nyashahama/mshauri-counselor-backend/internal/counselor"
	"github.com/nyashahama/mshauri-counselor-backend/internal/escalation"
	"github.com/nyashahama/mshauri-counselor-backend/internal/metrics"
)

// serviceName is reported by the health endpoint.
const serviceName = "M-SHAURI AI Counselor"

// Config holds values read from environment variables at startup.
type Config struct {
	// Env is "production", "staging", or "development".
	Env string

	// CORSAllowedOrigin is echoed in Access-Control-Allow-Origin. Empty means
	// "*" in production and the request's own origin elsewhere.
	CORSAllowedOrigin string

	// RequestTimeout bounds every request. Zero means 30s.
	RequestTimeout time.Duration
}

// Server holds all shared dependencies. Each handler file attaches methods to
// this type and uses only the fields it needs.
type Server struct {
	// engine runs analysis, response composition and assessment scoring.
	engine *counselor.Engine

	// escalator raises supervisor alerts for critical analyses.
	escalator escalation.Escalator

	metrics *metrics.Collector

	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to http.Server.
func NewServer(
	engine *counselor.Engine,
	escalator escalation.Escalator,
	collector *metrics.Collector,
	cfg Config,
	logger *slog.Logger,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	s := &Server{
		engine:    engine,
		escalator: escalator,
		metrics:   collector,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}

	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	// ── Health ────────────────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	// ── API ───────────────────────────────────────────────────────────────────
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/chat", s.handleChat)
		r.Get("/emergency", s.handleEmergency)
		r.Post("/assess", s.handleAssess)
	})

	return r
}
