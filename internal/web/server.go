// Package web provides the HTTP server and handlers for the import ledger.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/JonMunkholm/importledger/internal/config"
	"github.com/JonMunkholm/importledger/internal/core"
	mw "github.com/JonMunkholm/importledger/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP server for the import ledger.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
	limiter *rateLimiter

	// closing is closed by Shutdown so open progress streams end instead of
	// holding their connections open.
	closing   chan struct{}
	closeOnce sync.Once
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
		closing: make(chan struct{}),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.securityHeaders)

	if s.cfg.Rate.Enabled {
		s.limiter = newRateLimiter(s.cfg.Rate.RequestsPerMinute, s.cfg.Rate.Burst)
	}
}

// rateLimit applies the per-IP limiter to client-facing routes. Worker
// callbacks are not limited: a worker reports every row individually.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return s.limiter.middleware(next)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api/imports", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Use(mw.Identity)

		// Progress streams stay open, so they sit outside the request
		// timeout and compression.
		r.Get("/{importID}/events", s.handleImportEvents)

		r.Group(func(r chi.Router) {
			r.Use(s.requestLimits)

			r.Get("/", s.handleListImports)
			r.Post("/", s.handleCreateImport)
			r.Get("/{importID}", s.handleGetImport)
			r.Delete("/{importID}", s.handleDeleteImport)
			r.Get("/{importID}/results", s.handleImportResults)
			r.Get("/{importID}/progress", s.handleImportProgress)
		})
	})

	// HTMX fragments
	s.router.With(s.rateLimit, s.requestLimits, mw.Identity).Get("/imports/{importID}/status", s.handleImportStatusFragment)

	// Worker callbacks
	s.router.Route("/internal/imports/{importID}", func(r chi.Router) {
		r.Use(s.requestLimits)
		r.Use(mw.APIKeyAuth(s.cfg.Security))

		r.Post("/validation", s.handleStartValidation)
		r.Post("/rows", s.handleCreateRows)
		r.Post("/processing", s.handleStartProcessing)
		r.Put("/rows/{rowNumber}", s.handleUpdateRow)
		r.Post("/counts", s.handleIncrementCounts)
		r.Patch("/status", s.handlePatchStatus)
		r.Post("/complete", s.handleComplete)
		r.Post("/fail", s.handleFail)
	})
}

// requestLimits applies the request timeout and response compression used
// by every non-streaming route.
func (s *Server) requestLimits(next http.Handler) http.Handler {
	return middleware.Timeout(s.cfg.Server.RequestTimeout)(middleware.Compress(5)(next))
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closing) })
	if s.limiter != nil {
		s.limiter.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// handleHealth reports whether the store answers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := s.service.Store().Now(ctx); err != nil {
		slog.Warn("health check failed", "error", err)
		writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, map[string]any{
		"status":  "ok",
		"streams": s.service.StreamStatus(),
	})
}

// securityHeaders adds security headers to all responses.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		if s.cfg.Security.EnableCSP {
			w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		}
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with a 200 status.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

// encodeFailureBody is the ERR000 body sent when a response cannot be encoded.
const encodeFailureBody = `{"error":"internal error","message":"An unexpected error occurred","action":"Please try again or contact support","code":"ERR000"}` + "\n"

// writeJSONStatus encodes v as JSON with the given status. The body is
// encoded before any header is written, so an encoding failure becomes a
// 500 instead of a truncated response.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(encodeFailureBody))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Debug("json write error", "error", err)
	}
}

// writeError writes a JSON error for failures that happen before a handler
// runs, such as rate limiting.
func writeError(w http.ResponseWriter, status int, message string) {
	msg := core.MapError(errors.New(message))
	writeJSONStatus(w, status, ErrorResponse{
		Error:   message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
