package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"example.com/staticserve/internal/config"
	"example.com/staticserve/internal/logger"
)

const defaultShutdownTimeout = 30 * time.Second

// Server wraps an http.Server with h2c support so HTTP/2 cleartext clients
// are served alongside HTTP/1.1, and manages graceful shutdown on
// SIGINT/SIGTERM.
type Server struct {
	httpServer      *http.Server
	log             *logger.Logger
	shutdownTimeout time.Duration
}

// NewServer builds a Server from configuration, serving all requests through
// the given handler.
func NewServer(cfg *config.ServerConfig, lg *logger.Logger, handler http.Handler) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("server configuration cannot be nil")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}
	if lg == nil {
		lg = logger.NewDiscardLogger()
	}

	shutdownTimeout := defaultShutdownTimeout
	if cfg.ShutdownTimeout != nil {
		d, err := time.ParseDuration(*cfg.ShutdownTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid shutdown_timeout %q: %w", *cfg.ShutdownTimeout, err)
		}
		shutdownTimeout = d
	}

	var readTimeout time.Duration
	if cfg.ReadTimeout != nil {
		d, err := time.ParseDuration(*cfg.ReadTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid read_timeout %q: %w", *cfg.ReadTimeout, err)
		}
		readTimeout = d
	}

	addr := ":8080"
	if cfg.Address != nil {
		addr = *cfg.Address
	}

	h2s := &http2.Server{}
	return &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     h2c.NewHandler(handler, h2s),
			ReadTimeout: readTimeout,
		},
		log:             lg,
		shutdownTimeout: shutdownTimeout,
	}, nil
}

// Start runs the server until it fails or a termination signal arrives, then
// shuts down gracefully within the configured timeout. It blocks until the
// server has stopped.
func (s *Server) Start() error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Server listening", logger.LogFields{"address": s.httpServer.Addr})
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-sigCh:
		s.log.Info("Signal received, shutting down", logger.LogFields{"signal": sig.String()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	s.log.Info("Server shut down gracefully", nil)
	return nil
}

// Shutdown stops the server programmatically. Used by tests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
