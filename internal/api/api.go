// Package api provides HTTP handlers and the main API server logic for
// pulseboard.
//
// It exposes RESTful endpoints for the user CRUD, the weekly digest trigger,
// and outbox/audit diagnostics. Enqueue and trigger failures surface to
// callers synchronously; asynchronous handler failures are invisible here by
// design and are only observable via the event rows or the process log.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pulseboard/pulseboard/internal/digest"
	"github.com/pulseboard/pulseboard/internal/store"
)

// Default API server configuration
const (
	// DefaultAddr is the default listen address for the API server
	DefaultAddr = ":8080"
	// DefaultShutdownTimeout bounds how long Shutdown waits for in-flight requests
	DefaultShutdownTimeout = 10 * time.Second
	// DefaultListLimit caps diagnostic listing endpoints
	DefaultListLimit = 100
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server wires the HTTP endpoints to the store and the digest trigger.
type Server struct {
	store     store.Store
	digest    *digest.Service
	httpServe *http.Server
}

// NewServer creates an API server over the given store and digest service.
func NewServer(st store.Store, digestSvc *digest.Service, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	s := &Server{store: st, digest: digestSvc}

	mux := http.NewServeMux()
	mux.HandleFunc("/users", s.usersHandler)
	mux.HandleFunc("/users/", s.userHandler)
	mux.HandleFunc("/digest/weekly", s.digestHandler)
	mux.HandleFunc("/outbox/events", s.outboxEventsHandler)
	mux.HandleFunc("/audit", s.auditHandler)
	mux.HandleFunc("/health", s.healthHandler)

	s.httpServe = &http.Server{Addr: cfg.Addr, Handler: mux}
	return s
}

// Start begins serving HTTP requests. It blocks until the server is shut
// down or fails.
func (s *Server) Start() error {
	slog.Info("Server.Start: API listening", "addr", s.httpServe.Addr)
	if err := s.httpServe.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, DefaultShutdownTimeout)
	defer cancel()
	slog.Info("Server.Shutdown: stopping API server")
	return s.httpServe.Shutdown(shutdownCtx)
}

// Handler exposes the server's HTTP handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServe.Handler
}
