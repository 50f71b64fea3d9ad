package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/splflow/service/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP API over run history, workflow starts and step events.
type Server struct {
	addr    string
	store   RunStore
	starter FlowStarter
	supply  uint64
	stream  *StepStream
	metrics *metrics.Metrics
	logger  *slog.Logger
	server  *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The starter is optional - if nil, POST /api/v1/runs responds 503.
// supply is the workers' configured token supply; a requested transfer
// amount above it is rejected with 400. Zero disables the check.
// The stream is optional - if nil, SSE endpoints won't be available.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, store RunStore, starter FlowStarter, supply uint64, stream *StepStream, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:    addr,
		store:   store,
		starter: starter,
		supply:  supply,
		stream:  stream,
		metrics: m,
		logger:  logger,
	}
}

// Handler builds the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Run routes
	mux.Handle("POST /api/v1/runs", s.instrument("/api/v1/runs", handleStartRun(s.starter, s.supply, s.logger)))
	mux.Handle("GET /api/v1/runs", s.instrument("/api/v1/runs", handleListRuns(s.store, s.logger)))
	mux.Handle("GET /api/v1/runs/{id}", s.instrument("/api/v1/runs/{id}", handleGetRun(s.store, s.logger)))

	// SSE streaming endpoints (if step stream is configured)
	if s.stream != nil {
		mux.Handle("GET /api/v1/stream/runs/{id}", s.instrument("/api/v1/stream/runs/{id}", handleStreamSteps(s.stream, s.logger)))
		mux.Handle("GET /api/v1/stream/runs", s.instrument("/api/v1/stream/runs", handleStreamSteps(s.stream, s.logger)))
		s.logger.Info("SSE streaming endpoints enabled")
	} else {
		s.logger.Warn("step stream not configured, streaming endpoints disabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(mux)
}

func (s *Server) instrument(name string, h http.Handler) http.Handler {
	return metrics.HTTPMetricsMiddleware(s.metrics, name)(h)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// SSE responses stay open, so no WriteTimeout.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	// Close the step stream first (disconnects all clients)
	if s.stream != nil {
		s.stream.Close()
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
