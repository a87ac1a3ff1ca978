// Package server implements the HTTP server for the application.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sevigo/commit-digest/internal/config"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultShutdownTimeout = 30 * time.Second
)

// Server wraps an HTTP server with graceful shutdown capabilities.
type Server struct {
	ctx             context.Context
	server          *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// NewServer creates a new HTTP server serving the webhook and job API.
func NewServer(ctx context.Context, cfg *config.Config, deps Dependencies, logger *slog.Logger) *Server {
	router := NewRouter(cfg, deps, logger)

	return &Server{
		ctx: ctx,
		server: &http.Server{
			Addr:         ":" + cfg.Server.Port,
			Handler:      router,
			ReadTimeout:  orDefault(cfg.Server.ReadTimeout, defaultReadTimeout),
			WriteTimeout: orDefault(cfg.Server.WriteTimeout, defaultWriteTimeout),
			IdleTimeout:  120 * time.Second,
			BaseContext:  func(_ net.Listener) context.Context { return ctx },
		},
		shutdownTimeout: orDefault(cfg.Server.ShutdownTimeout, defaultShutdownTimeout),
		logger:          logger,
	}
}

// Start starts the HTTP server and blocks until shutdown or error.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.logger.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
