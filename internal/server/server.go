// Package server owns the HTTP listener: middleware chain, CORS, and
// graceful shutdown around the API handler.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/infrasketch/sketchd/internal/config"
)

const defaultRequestTimeout = 60 * time.Second

type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	logger     *slog.Logger
}

// New assembles the middleware chain and mounts the API handler under
// the configured base path (default /api).
func New(cfg config.ServerConfig, api http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(config.Duration(cfg.RequestTimeout, defaultRequestTimeout)))
	r.Use(middleware.Recoverer)

	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Diagram-Version"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "sketchd")
	})

	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	r.Mount(basePath, api)

	return &Server{
		httpServer: &http.Server{
			Addr:    cfg.Addr(),
			Handler: r,
		},
		router: r,
		logger: logger,
	}
}

// Handler returns the full middleware-wrapped handler, for tests that
// serve it without binding a socket.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving requests until Shutdown is called or the
// listener fails.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("stopping server")
	return s.httpServer.Shutdown(ctx)
}
