package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// StartMetricsHTTP starts a lightweight HTTP server that exposes /metrics
// in Prometheus text exposition format. It runs in the background and
// shuts down when the server context is cancelled.
//
// Bind address is :8001 by default — configurable via Config.MetricsAddr.
func (s *Server) StartMetricsHTTP() {
	addr := s.cfg.MetricsAddr
	if addr == "" {
		return // metrics endpoint disabled
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics HTTP listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics HTTP error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()
}

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.metrics
	uptime := time.Since(m.startTime).Seconds()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Helper for gauge/counter lines.
	// Write errors to http.ResponseWriter are non-actionable; suppress errcheck.
	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}
	writeFloat := func(name, help, mtype string, value float64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %f\n", name, value)
	}

	writeFloat("callbridge_uptime_seconds", "Server uptime in seconds.", "gauge", uptime)

	write("callbridge_sessions_active", "Current live sessions.", "gauge",
		int64(s.sessions.Count()))
	write("callbridge_connections_active", "Current live signaling connections.", "gauge",
		m.ActiveConnections.Load())
	write("callbridge_connections_total", "Lifetime WebSocket connections accepted.", "counter",
		m.TotalConnections.Load())
	write("callbridge_disconnects_total", "Total client disconnects.", "counter",
		m.TotalDisconnects.Load())

	write("callbridge_auth_success_total", "Successful session authorizations.", "counter",
		m.SuccessfulAuths.Load())
	write("callbridge_auth_failed_total", "Failed logins and refused channel opens.", "counter",
		m.FailedAuths.Load())

	write("callbridge_users_registered_total", "Accounts created.", "counter",
		m.UsersRegistered.Load())

	write("callbridge_calls_placed_total", "Call offers relayed.", "counter",
		m.CallsPlaced.Load())
	write("callbridge_calls_answered_total", "Call answers relayed.", "counter",
		m.CallsAnswered.Load())
	write("callbridge_calls_declined_total", "Call declines relayed.", "counter",
		m.CallsDeclined.Load())
	write("callbridge_calls_ended_total", "Call hang-ups relayed.", "counter",
		m.CallsEnded.Load())
	write("callbridge_ice_candidates_total", "ICE candidates relayed.", "counter",
		m.CandidatesRelayed.Load())

	write("callbridge_messages_relayed_total", "Total frames forwarded to a target.", "counter",
		m.MessagesRelayed.Load())
	write("callbridge_messages_dropped_total", "Malformed or unknown-type frames dropped.", "counter",
		m.MessagesDropped.Load())
	write("callbridge_target_offline_errors_total", "Call attempts to offline targets.", "counter",
		m.TargetOfflineErrors.Load())

	write("callbridge_presence_broadcasts_total", "Presence snapshot fan-outs.", "counter",
		m.PresenceBroadcasts.Load())
}
