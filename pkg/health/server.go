// Package health serves the gateway HTTP surface: liveness and readiness
// checks, runtime counters and the mounted webhook endpoint.
package health

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tinyland-inc/forwardbot/pkg/logger"
)

// Check reports whether a dependency is ready. A nil error means ready.
type Check func(ctx context.Context) error

// StatsFunc produces the body of GET /stats.
type StatsFunc func() any

type Server struct {
	router  chi.Router
	server  *http.Server
	started time.Time
	ready   atomic.Bool

	mu     sync.RWMutex
	checks map[string]Check
	stats  StatsFunc
}

func NewServer(host string, port int) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		started: time.Now(),
		checks:  make(map[string]Check),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ready", s.handleReady)
	s.router.Get("/stats", s.handleStats)

	s.server = &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handle mounts h at path for the given method.
func (s *Server) Handle(method, path string, h http.Handler) {
	s.router.Method(method, path, h)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) RegisterCheck(name string, check Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

func (s *Server) SetStats(fn StatsFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = fn
}

// SetReady flips the readiness check. The server starts not ready.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Start blocks serving until Stop is called. It returns http.ErrServerClosed
// after a clean shutdown.
func (s *Server) Start() error {
	logger.InfoCF("health", "HTTP server listening", map[string]any{"addr": s.server.Addr})
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.SetReady(false)
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready"})
		return
	}

	s.mu.RLock()
	checks := make(map[string]Check, len(s.checks))
	for name, c := range s.checks {
		checks[name] = c
	}
	s.mu.RUnlock()

	results := make(map[string]string, len(checks))
	status := http.StatusOK
	for name, check := range checks {
		if err := check(r.Context()); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	body := map[string]any{"status": "ready", "checks": results}
	if status != http.StatusOK {
		body["status"] = "not ready"
	}
	writeJSON(w, status, body)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	fn := s.stats
	s.mu.RUnlock()

	if fn == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "stats unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, fn())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WarnCF("health", "Failed to encode response", map[string]any{"error": err.Error()})
	}
}

// requestLogger logs requests through the component logger instead of
// chi's stdlib logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		logger.DebugCF("health", "HTTP request", map[string]any{
			"method":     r.Method,
			"path":       loggedPath(r),
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		})
	})
}

// loggedPath hides paths other than the health routes, since the webhook
// path may embed the bot token.
func loggedPath(r *http.Request) string {
	switch r.URL.Path {
	case "/health", "/ready", "/stats":
		return r.URL.Path
	}
	return "[redacted]"
}
