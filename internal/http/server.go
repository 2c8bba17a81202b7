// Package http exposes the JSON API consumed by the desktop shell.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"hydra/internal/cache"
	"hydra/internal/core"
	"hydra/internal/log"
)

// Tracker is the service surface the handlers need. Satisfied by
// services.TrackerService.
type Tracker interface {
	AddEntry(ctx context.Context, amountML int) (core.Entry, error)
	QuickAdd(ctx context.Context, preset int) (core.Entry, error)
	RemoveEntry(ctx context.Context, id int64) error
	TodayStats(ctx context.Context) (core.DailyStats, error)
	TodayEntries(ctx context.Context) ([]core.Entry, error)
	MonthlyStats(ctx context.Context, year, month int) (core.MonthlyStats, error)
	YearlyOverview(ctx context.Context, year int) ([]core.MonthlyStats, error)
	GetSettings(ctx context.Context) (core.Settings, error)
	SaveSettings(ctx context.Context, s core.Settings) error
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	http.Server
	tracker     Tracker
	pinger      Pinger
	rateLimiter *rateLimiter

	// Stats rollups are cheap to recompute but requested on every shell
	// refresh, so recent months stay cached until a write touches them.
	monthlyCache *cache.LRUCache[core.MonthlyStats]
	yearlyCache  *cache.LRUCache[[]core.MonthlyStats]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and caches, returning a ready-to-run server.
func NewServer(addr string, tracker Tracker, pinger Pinger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		tracker:      tracker,
		pinger:       pinger,
		rateLimiter:  newRateLimiter(),
		monthlyCache: cache.NewLRUCache[core.MonthlyStats](100, 5*time.Minute),
		yearlyCache:  cache.NewLRUCache[[]core.MonthlyStats](20, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.monthlyCache)
	s.cacheManager.Register(s.yearlyCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("POST /api/entries", s.withMiddleware(s.handleAddEntry))
	mux.HandleFunc("POST /api/entries/quick", s.withMiddleware(s.handleQuickAdd))
	mux.HandleFunc("DELETE /api/entries/{id}", s.withMiddleware(s.handleDeleteEntry))
	mux.HandleFunc("GET /api/entries/today", s.withMiddleware(s.handleTodayEntries))
	mux.HandleFunc("GET /api/stats/today", s.withMiddleware(s.handleTodayStats))
	mux.HandleFunc("GET /api/stats/monthly", s.withMiddleware(s.handleMonthlyStats))
	mux.HandleFunc("GET /api/stats/yearly", s.withMiddleware(s.handleYearlyStats))
	mux.HandleFunc("GET /api/settings", s.withMiddleware(s.handleGetSettings))
	mux.HandleFunc("PUT /api/settings", s.withMiddleware(s.handlePutSettings))
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	return s
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

type contextKey string

const requestIDKey contextKey = "request_id"

// withMiddleware adds request tracing, rate limiting on mutating methods,
// and security headers.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, clientIP)

		if mutating(r.Method) && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, duration.Milliseconds(),
			log.FieldClientIP, clientIP)
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			slog.ErrorContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func monthlyCacheKey(year, month int) string {
	return strconv.Itoa(year) + "-" + strconv.Itoa(month)
}

// invalidateStats drops cached rollups touched by a write to the given date.
func (s *Server) invalidateStats(year, month int) {
	s.monthlyCache.Delete(monthlyCacheKey(year, month))
	s.yearlyCache.Delete(strconv.Itoa(year))
}

// invalidateAllStats purges every cached rollup. A goal change shifts every
// percentage, so nothing cached stays valid.
func (s *Server) invalidateAllStats() {
	s.monthlyCache.Purge()
	s.yearlyCache.Purge()
}
