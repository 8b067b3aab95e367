// Package server exposes the decision engine over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arbiterhq/arbiter/internal/config"
	"github.com/arbiterhq/arbiter/internal/policy"
)

// Server manages HTTP server lifecycle for the decision API.
type Server struct {
	server *http.Server
	config *config.ServerConfig
	logger *slog.Logger
}

// NewServer creates the decision API server with routing and middleware.
func NewServer(cfg *config.ServerConfig, engine *policy.Engine, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      newRouter(engine, logger),
			ReadTimeout:  cfg.RequestTimeout,
			WriteTimeout: cfg.RequestTimeout,
		},
		config: cfg,
		logger: logger,
	}, nil
}

// newRouter wires routes and middleware for the decision API.
func newRouter(engine *policy.Engine, logger *slog.Logger) *mux.Router {
	h := &handlers{engine: engine, logger: logger}

	router := mux.NewRouter()
	router.HandleFunc("/v1/evaluate", h.evaluate).Methods(http.MethodPost)
	router.HandleFunc("/v1/allowed", h.allowed).Methods(http.MethodPost)
	router.HandleFunc("/v1/enforce", h.enforce).Methods(http.MethodPost)
	router.HandleFunc("/v1/permissions", h.permissions).Methods(http.MethodPost)
	router.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.Use(requestLogging(logger))
	return router
}

// Start binds the listener and serves requests until Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.server.Addr, err)
	}

	s.logger.Info("decision api listening", "addr", s.server.Addr)
	if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.server.Close()
		return fmt.Errorf("graceful shutdown failed, forced close: %w", err)
	}
	return nil
}

// requestLogging logs one line per request after it completes.
func requestLogging(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", recorder.status,
				"duration", time.Since(start),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
