// Package api provides the HTTP server for Stride.
// It exposes the streak and activation services as a JSON REST API.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/stridefit/stride/internal/app/engagement"
	"github.com/stridefit/stride/internal/health"
)

// Options tunes middleware.
type Options struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
	RateLimit      float64
	RateBurst      int
}

// DefaultOptions returns permissive local-development settings.
func DefaultOptions() Options {
	return Options{
		CORSOrigins:    []string{"*"},
		RequestTimeout: 15 * time.Second,
	}
}

// Server is the Stride HTTP API server.
type Server struct {
	streaks        *engagement.StreakService
	activation     *engagement.ActivationService
	health         *health.Checker
	log            *zap.Logger
	opts           Options
	metricsEnabled bool
	limiter        *clientLimiter
}

// NewServer creates a new API server.
func NewServer(streaks *engagement.StreakService, activation *engagement.ActivationService, log *zap.Logger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		streaks:    streaks,
		activation: activation,
		log:        log.Named("api"),
		opts:       opts,
	}
	if opts.RateLimit > 0 {
		s.limiter = newClientLimiter(opts.RateLimit, opts.RateBurst)
	}
	return s
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealth attaches the checker reported by /health.
func (s *Server) SetHealth(c *health.Checker) { s.health = c }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.opts.RequestTimeout))
	}
	r.Use(s.cors)
	if s.limiter != nil {
		r.Use(s.limiter.middleware)
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api/streak/{userID}", func(r chi.Router) {
		r.Get("/", s.handleStreakStatus)
		r.Post("/activity", s.handleStreakActivity)
		r.Post("/freeze", s.handleStreakFreeze)
		r.Post("/freeze-tokens", s.handleStreakGrant)
		r.Post("/weekend-skip", s.handleStreakWeekendSkip)
		r.Put("/timezone", s.handleStreakTimeZone)
		r.Get("/calendar", s.handleStreakCalendar)
	})

	r.Route("/api/activation", func(r chi.Router) {
		r.Get("/events", s.handleActivationRegistry)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleActivationProfile)
			r.Post("/events", s.handleActivationTrack)
			r.Get("/recommendations", s.handleActivationRecommend)
			r.Get("/journey", s.handleActivationJourney)
			r.Post("/identify", s.handleActivationIdentify)
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, typ, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    typ,
		},
	})
}
