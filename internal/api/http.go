// SPDX-License-Identifier: MIT

// Package api serves the HTTP surface: the container health contract on /,
// Kubernetes-style probes, and a small read-only status API over the run
// history.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/snaptally/snaptally/internal/health"
	"github.com/snaptally/snaptally/internal/jobs"
	"github.com/snaptally/snaptally/internal/log"
	"github.com/snaptally/snaptally/internal/store"
	"github.com/snaptally/snaptally/internal/version"
)

// StatusProvider reports analyzer state. Satisfied by *jobs.Analyzer.
type StatusProvider interface {
	Status(ctx context.Context) (jobs.Status, error)
}

// Server is the HTTP API.
type Server struct {
	router    *chi.Mux
	health    *health.Manager
	status    StatusProvider
	store     *store.Store
	gatewayUp func() bool
	ready     atomic.Bool
	logger    zerolog.Logger
}

// New assembles the router. gatewayUp reports live gateway connectivity for
// the root endpoint's container health contract.
func New(hm *health.Manager, status StatusProvider, st *store.Store, gatewayUp func() bool) *Server {
	s := &Server{
		health:    hm,
		status:    status,
		store:     st,
		gatewayUp: gatewayUp,
		logger:    log.WithComponent("api"),
	}

	r := chi.NewRouter()
	r.Use(recoverer)
	r.Use(requestID)
	r.Use(securityHeaders)
	r.Use(log.Middleware())
	r.Use(httpMetrics)

	r.Get("/", s.handleRoot)
	r.Get("/healthz", hm.ServeHealth)
	r.Get("/readyz", hm.ServeReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(httprate.LimitByIP(60, time.Minute))
		r.Get("/status", s.handleStatus)
		r.Get("/runs", s.handleRuns)
	})

	s.router = r
	return s
}

// SetReady marks startup as complete; before that the root endpoint reports
// the bot as starting.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Handler returns the traced HTTP handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "http.api")
}

// handleRoot keeps the original container health contract: plain text, 200
// while starting or running, 503 once the gateway session has dropped.
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	switch {
	case !s.ready.Load():
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Bot thread is running but not ready.\n"))
	case s.gatewayUp():
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Bot is running and ready.\n"))
	default:
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Web server running. Bot thread status: DOWN.\n"))
	}
}

type statusResponse struct {
	Service          string      `json:"service"`
	Version          string      `json:"version"`
	GatewayConnected bool        `json:"gateway_connected"`
	Analyzer         jobs.Status `json:"analyzer"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.status.Status(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "failed to read analyzer status", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, statusResponse{
		Service:          "snaptally",
		Version:          version.Version,
		GatewayConnected: s.gatewayUp(),
		Analyzer:         st,
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, "limit must be an integer", err)
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "failed to list runs", err)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := log.WithContext(r.Context(), s.logger)
		logger.Error().Err(err).Msg("failed to encode response")
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	logger := log.WithContext(r.Context(), s.logger)
	logger.Error().
		Err(err).
		Int("status", status).
		Str(log.FieldPath, r.URL.Path).
		Msg(msg)
	s.writeJSON(w, r, status, errorResponse{
		Error:     msg,
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}
