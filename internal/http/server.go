// Package http serves the operational endpoints of fundbot: health,
// readiness, metrics and a synchronous chat endpoint for integrations that
// cannot use the queue.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	applog "agencyfund/internal/log"
	"agencyfund/internal/middleware"
)

const (
	maxMessageBody = 16 << 10
	readyTimeout   = 2 * time.Second
)

// ReadinessCheck reports why a dependency cannot serve traffic.
type ReadinessCheck func(ctx context.Context) error

type Server struct {
	http.Server

	handle  middleware.Handler
	checks  map[string]ReadinessCheck
	metrics func() map[string]any
	logger  *slog.Logger

	shutdownOnce sync.Once
}

type Option func(*Server)

func WithReadinessCheck(name string, check ReadinessCheck) Option {
	return func(s *Server) { s.checks[name] = check }
}

// WithMetrics sets the snapshot served on /metrics.
func WithMetrics(snapshot func() map[string]any) Option {
	return func(s *Server) { s.metrics = snapshot }
}

// NewServer configures routes and returns a ready-to-run server. handle may
// be nil, in which case /messages is not mounted.
func NewServer(addr string, handle middleware.Handler, opts ...Option) *Server {
	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		handle: handle,
		checks: map[string]ReadinessCheck{},
		logger: slog.Default().With(applog.FieldComponent, applog.ComponentHTTP),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.withHeaders(s.handleReady))
	mux.HandleFunc("GET /metrics", s.withHeaders(s.handleMetrics))
	if handle != nil {
		mux.HandleFunc("POST /messages", s.withHeaders(s.handleMessage))
	}
	return s
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// ListenAndServe runs until Shutdown; a clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", "addr", s.Addr)
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// withHeaders adds response headers and request logging.
func (s *Server) withHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "no-store")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		level := slog.LevelDebug
		if rw.statusCode >= 500 {
			level = slog.LevelError
		} else if rw.statusCode >= 400 {
			level = slog.LevelWarn
		}
		s.logger.Log(r.Context(), level, "HTTP request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	failed := map[string]string{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, readyResponse{Status: "unavailable", Checks: failed})
		return
	}
	writeJSON(w, http.StatusOK, readyResponse{Status: "ready"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	snapshot := map[string]any{}
	if s.metrics != nil {
		snapshot = s.metrics()
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	reply := s.handle(r.Context(), req.UserID, req.Text)
	writeJSON(w, http.StatusOK, messageResponse{Reply: reply})
}
