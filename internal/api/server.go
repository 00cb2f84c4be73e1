package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/coreapi/internal/metrics"
)

const defaultRequestTimeout = 60 * time.Second

// HealthChecker reports whether the database is reachable.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// IDGenerator produces request identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Server wires operational routes and middleware in front of the dispatcher.
type Server struct {
	router chi.Router
	health HealthChecker
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes. Requests chi
// cannot route are handed to dispatch.
func NewServer(
	dispatch http.Handler,
	health HealthChecker,
	ids IDGenerator,
	logger *zap.Logger,
	requestTimeout time.Duration,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	s := &Server{
		health: health,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware(ids, logger))
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.NotFound(dispatch.ServeHTTP)
	r.MethodNotAllowed(dispatch.ServeHTTP)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.CheckHealth(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
