package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// Run starts the server and blocks until shutdown signal.
func (s *Server) Run() error {
	if s.store == nil {
		return fmt.Errorf("server: missing store dependency")
	}
	users, err := s.store.NonTx().CountUsers()
	if err != nil {
		return fmt.Errorf("server: count users: %w", err)
	}

	s.httpSrv = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		// No other timeouts: the signaling endpoint holds long-lived
		// upgraded connections.
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("CallBridge server running",
		"addr", s.cfg.ListenAddr,
		"registered_users", users,
	)

	// Prometheus metrics HTTP endpoint
	s.StartMetricsHTTP()

	// Periodic metrics logging (every 60s)
	s.metrics.StartPeriodicLog(60*time.Second, s.ctx.Done())

	// Wait for shutdown signal or listener failure
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		s.Shutdown()
		return fmt.Errorf("server: listen: %w", err)
	case <-sigCh:
	}

	slog.Info("shutting down...")
	s.Shutdown()
	return nil
}

// Shutdown gracefully stops the server: close every live channel, then
// drain the HTTP listener.
func (s *Server) Shutdown() {
	s.cancel()

	for _, peer := range s.presence.Peers() {
		peer.Close(websocket.CloseGoingAway, "server shutting down")
	}

	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(ctx)
	}
}
