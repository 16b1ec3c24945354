// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/okian/gradestats/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	GradeQueries
	Ingester
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	gradesHandler *GradesHandler
	ingestHandler *IngestHandler
	origins       []string
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAllowedOrigins enables CORS for origins. An empty list disables CORS.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) { s.origins = origins }
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...ServerOption) *Server {
	s := &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(deps),
		gradesHandler: NewGradesHandler(deps),
		ingestHandler: NewIngestHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			ExposedHeaders: []string{"Content-Length"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	r.Get("/status", MetricsMiddleware(s.statsHandler.HandleStats, "status"))

	r.Route("/grades", func(r chi.Router) {
		r.Post("/", MetricsMiddleware(s.ingestHandler.HandlePostGrade, "grades_ingest"))
		r.Get("/learner/{id}/avg-class", MetricsMiddleware(s.gradesHandler.HandleLearnerClasses, "grades_learner"))
		r.Get("/stats", MetricsMiddleware(s.gradesHandler.HandleGlobalStats, "grades_stats"))
		r.Get("/stats/{id}", MetricsMiddleware(s.gradesHandler.HandleClassStats, "grades_class_stats"))
	})
}

// Routes builds a chi router with every API route registered.
func (s *Server) Routes(ctx context.Context) chi.Router {
	r := chi.NewRouter()
	s.Register(ctx, r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeKindError maps the error kind to a status and error code.
func writeKindError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", err)
	case errors.Is(err, ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}

// classifyIngest tags an ingest error. Invalid records and malformed entries
// come from the request body and are the client's fault.
func classifyIngest(op string, err error) error {
	if errors.Is(err, model.ErrInvalidRecord) || errors.Is(err, model.ErrMalformedEntry) {
		return WrapKind(op, ErrBadRequest, err)
	}
	return classify(op, err)
}

// classify tags a service error with the kind the HTTP layer maps to a status.
// Query handlers use it directly: a malformed entry read from the store is an
// internal error, not a bad request.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, model.ErrBackpressure):
		return WrapKind(op, ErrBackpressure, err)
	case errors.Is(err, model.ErrUnavailable):
		return WrapKind(op, ErrUnavailable, err)
	default:
		return Wrap(op, err)
	}
}
