// Package server implements the CallBridge signaling relay: session
// registry, presence directory, signaling router, and presence broadcaster
// over an HTTP/WebSocket transport.
package server

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/mlindgren/callbridge/pkg/datastore"
)

// Dependencies holds external dependencies for the server.
// The caller retains ownership of Store and closes it after Run returns.
type Dependencies struct {
	Store datastore.DataProviderFactory
}

// Server is the CallBridge signaling server.
type Server struct {
	cfg      Config
	sessions *SessionManager
	presence *PresenceDirectory
	metrics  *Metrics
	store    datastore.DataProviderFactory
	upgrader websocket.Upgrader
	httpSrv  *http.Server
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a new Server instance.
func New(cfg Config, deps Dependencies) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		sessions: NewSessionManager(),
		presence: NewPresenceDirectory(),
		metrics:  NewMetrics(),
		store:    deps.Store,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// checkOrigin accepts any origin when no allowlist is configured,
// matching the permissive CORS posture of a development deployment.
func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // non-browser client
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// Sessions returns the session manager.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Presence returns the presence directory.
func (s *Server) Presence() *PresenceDirectory {
	return s.presence
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}
