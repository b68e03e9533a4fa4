// Package server exposes the script execution engine over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/scriptbox/internal/sandbox"
	"github.com/leapstack-labs/scriptbox/pkg/core"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// Server is the HTTP API server.
type Server struct {
	engine  *sandbox.Engine
	invoker core.Invoker
	host    string
	port    int
	logger  *slog.Logger
}

// Config holds configuration for the HTTP server.
type Config struct {
	Engine  *sandbox.Engine
	Invoker core.Invoker
	Host    string
	Port    int
	Logger  *slog.Logger
}

// New creates a new server instance.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		engine:  cfg.Engine,
		invoker: cfg.Invoker,
		host:    cfg.Host,
		port:    cfg.Port,
		logger:  logger,
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewMux()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Post("/execute", s.handleExecute)
		r.Get("/tools", s.handleTools)
	})
	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port))
	s.logger.Info("starting server", "addr", addr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	eg, egctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
