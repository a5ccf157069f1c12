// Package server exposes stored comparison runs over a small read-only HTTP
// API.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/research-compare/internal/storage"
)

type Server struct {
	Router *chi.Mux
	Port   int
	store  storage.ComparisonStore
	logger *slog.Logger
}

func New(port int, store storage.ComparisonStore, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "research-compare")
	})

	s := &Server{
		Router: r,
		Port:   port,
		store:  store,
		logger: logger,
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/v1/comparisons", s.handleListComparisons)
	r.Get("/v1/comparisons/{id}", s.handleGetComparison)

	return s
}

func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	return http.ListenAndServe(fmt.Sprintf(":%d", s.Port), s.Router)
}
