// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package admin serves the operational HTTP surface of portdash: health,
// credential status, manual rotation and the Prometheus scrape endpoint.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/envoyproxy/portdash/internal/credentials"
)

const shutdownTimeout = 5 * time.Second

// StatusReader reports the credential status. It must never block on a rotation.
type StatusReader interface {
	Status() credentials.Status
}

// Rotator forces an out-of-band rotation attempt.
type Rotator interface {
	ManualRotate(ctx context.Context) (credentials.Outcome, error)
}

// Server is the admin HTTP server.
type Server struct {
	logger   logr.Logger
	addr     string
	status   StatusReader
	rotator  Rotator
	gatherer prometheus.Gatherer
	router   *mux.Router
}

type rotateResponse struct {
	Outcome credentials.Outcome `json:"outcome"`
	Status  credentials.Status  `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewServer creates a Server listening on addr. /metrics is only routed when gatherer is non-nil.
func NewServer(logger logr.Logger, addr string, status StatusReader, rotator Rotator, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		logger:   logger.WithName("admin"),
		addr:     addr,
		status:   status,
		rotator:  rotator,
		gatherer: gatherer,
		router:   mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/token").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/rotate", s.handleRotate).Methods(http.MethodPost)

	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen for admin: %w", err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	server := &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("admin server listening", "address", lis.Addr().String())
		errCh <- server.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("admin server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down admin server: %w", err)
	}
	<-errCh
	s.logger.Info("admin server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.status.Status())
}

func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	// A client hanging up must not cut the attempt short.
	out, err := s.rotator.ManualRotate(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, credentials.ErrRotationInProgress):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case err != nil:
		s.logger.Error(err, "manual rotation failed")
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "rotation failed"})
	default:
		s.writeJSON(w, http.StatusOK, rotateResponse{Outcome: out, Status: s.status.Status()})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(err, "failed to write response")
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.V(1).Info("request received", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
