// Package health provides the HTTP status server: health probes, metrics
// and any routes a module mounts on it.
package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fd1az/flashguard/internal/logger"
)

const (
	checkTimeout    = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Status represents the health check response.
type Status struct {
	Status    string           `json:"status"`
	Checks    map[string]Check `json:"checks"`
	Version   string           `json:"version,omitempty"`
	Timestamp string           `json:"timestamp"`
}

// Check represents an individual health check.
type Check struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// CheckFunc is a function that performs a health check.
type CheckFunc func(ctx context.Context) (bool, string)

// Config configures the server.
type Config struct {
	Port         int
	Version      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server serves /health, /health/ready, /health/live and /metrics. Extra
// routes are mounted through Router.
type Server struct {
	config Config
	logger logger.LoggerInterface
	router chi.Router

	mu        sync.RWMutex
	checks    map[string]CheckFunc
	readiness map[string]CheckFunc
}

// NewServer creates a new status server.
func NewServer(cfg Config, log logger.LoggerInterface) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 15 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		config:    cfg,
		logger:    log,
		router:    r,
		checks:    make(map[string]CheckFunc),
		readiness: make(map[string]CheckFunc),
	}

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", s.handleHealth)
		r.Get("/ready", s.handleReady)
		r.Get("/live", s.handleLive)
	})
	return s
}

// RegisterCheck registers a health check. Health checks also gate readiness.
func (s *Server) RegisterCheck(name string, check CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// RegisterReadiness registers a check that gates readiness only.
func (s *Server) RegisterReadiness(name string, check CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readiness[name] = check
}

// Router exposes the router for mounting module routes.
func (s *Server) Router() chi.Router {
	return s.router
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "status server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen and serve: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info(ctx, "status server stopped")
	return nil
}

func (s *Server) snapshot(sets ...map[string]CheckFunc) map[string]CheckFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]CheckFunc)
	for _, set := range sets {
		for k, v := range set {
			out[k] = v
		}
	}
	return out
}

func (s *Server) run(ctx context.Context, checks map[string]CheckFunc) (map[string]Check, bool) {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]Check, len(checks))
	all := true
	for _, name := range names {
		healthy, msg := checks[name](ctx)
		results[name] = Check{Healthy: healthy, Message: msg}
		all = all && healthy
	}
	return results, all
}

// handleHealth returns full health status with all checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	results, healthy := s.run(ctx, s.snapshot(s.checks))
	status := Status{
		Status:    "ok",
		Checks:    results,
		Version:   s.config.Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	code := http.StatusOK
	if !healthy {
		status.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, code, status)
}

// handleReady returns whether the service is ready to receive traffic.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	results, ready := s.run(ctx, s.snapshot(s.checks, s.readiness))
	if !ready {
		WriteJSON(w, http.StatusServiceUnavailable, Status{
			Status:    "not ready",
			Checks:    results,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleLive returns whether the service is alive (simple liveness probe).
func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteJSON encodes v with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes an ErrorResponse.
func WriteError(w http.ResponseWriter, code int, errCode, msg string) {
	WriteJSON(w, code, ErrorResponse{Error: msg, Code: errCode})
}
