// Linesman - Sports Video Library Organizer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linesman

// Package api exposes Linesman's operational HTTP endpoints: health,
// readiness, Prometheus metrics, the last pass summary, and a manual
// refresh trigger. The surface is unauthenticated and intended for LAN
// operation.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/linesman/internal/logging"
	"github.com/tomtom215/linesman/internal/models"
)

// SummarySource supplies the most recent pass summary.
type SummarySource interface {
	LastSummary() *models.PassSummary
}

// PassRequester asks the run loop for a manual pass. Implementations must
// not block.
type PassRequester func()

// Server is the operational HTTP server.
type Server struct {
	addr      string
	summaries SummarySource
	requester PassRequester
	router    chi.Router
}

// NewServer builds the server. requester may be nil when the run loop is
// not signalable (one-shot mode).
func NewServer(host string, port int, summaries SummarySource, requester PassRequester) *Server {
	s := &Server{
		addr:      fmt.Sprintf("%s:%d", host, port),
		summaries: summaries,
		requester: requester,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/refresh", s.handleRefresh)
	})
	s.router = r
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve implements suture.Service: listens until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	logging.Info().Str("addr", s.addr).Msg("API server listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// String names the service in supervisor logs.
func (s *Server) String() string {
	return "api-server"
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz reports ready once the first pass has completed.
func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if s.summaries == nil || s.summaries.LastSummary() == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "waiting for first pass"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if s.summaries == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no summaries"})
		return
	}
	summary := s.summaries.LastSummary()
	if summary == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no pass has run"})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	if s.requester == nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "manual passes unavailable"})
		return
	}
	s.requester()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "pass requested"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("API response encoding failed")
	}
}
