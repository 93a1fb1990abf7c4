package server

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks server runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Connection counters
	TotalConnections  atomic.Int64 // lifetime WebSocket connections accepted
	ActiveConnections atomic.Int64 // current live signaling connections
	SuccessfulAuths   atomic.Int64 // successful session authorizations
	FailedAuths       atomic.Int64 // failed logins + refused channel opens
	TotalDisconnects  atomic.Int64 // total client disconnects (clean + unclean)

	// Account counters
	UsersRegistered atomic.Int64 // accounts created during this run

	// Signaling counters
	CallsPlaced         atomic.Int64 // call_user offers relayed
	CallsAnswered       atomic.Int64 // answer_call relays
	CallsDeclined       atomic.Int64 // call_declined relays
	CallsEnded          atomic.Int64 // call_ended relays
	CandidatesRelayed   atomic.Int64 // ICE candidates relayed
	MessagesRelayed     atomic.Int64 // total frames forwarded to a target
	MessagesDropped     atomic.Int64 // malformed or unknown-type frames dropped
	TargetOfflineErrors atomic.Int64 // call_user attempts to offline targets

	// Presence counters
	PresenceBroadcasts atomic.Int64 // online_users fan-outs performed
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// MetricsSnapshot is a point-in-time view of all metrics as a serializable struct.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	SuccessfulAuths   int64 `json:"successful_auths"`
	FailedAuths       int64 `json:"failed_auths"`
	TotalDisconnects  int64 `json:"total_disconnects"`

	UsersRegistered int64 `json:"users_registered"`

	CallsPlaced         int64 `json:"calls_placed"`
	CallsAnswered       int64 `json:"calls_answered"`
	CallsDeclined       int64 `json:"calls_declined"`
	CallsEnded          int64 `json:"calls_ended"`
	CandidatesRelayed   int64 `json:"candidates_relayed"`
	MessagesRelayed     int64 `json:"messages_relayed"`
	MessagesDropped     int64 `json:"messages_dropped"`
	TargetOfflineErrors int64 `json:"target_offline_errors"`

	PresenceBroadcasts int64 `json:"presence_broadcasts"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:              uptime.Truncate(time.Second).String(),
		UptimeSeconds:       int64(uptime.Seconds()),
		ActiveConnections:   m.ActiveConnections.Load(),
		TotalConnections:    m.TotalConnections.Load(),
		SuccessfulAuths:     m.SuccessfulAuths.Load(),
		FailedAuths:         m.FailedAuths.Load(),
		TotalDisconnects:    m.TotalDisconnects.Load(),
		UsersRegistered:     m.UsersRegistered.Load(),
		CallsPlaced:         m.CallsPlaced.Load(),
		CallsAnswered:       m.CallsAnswered.Load(),
		CallsDeclined:       m.CallsDeclined.Load(),
		CallsEnded:          m.CallsEnded.Load(),
		CandidatesRelayed:   m.CandidatesRelayed.Load(),
		MessagesRelayed:     m.MessagesRelayed.Load(),
		MessagesDropped:     m.MessagesDropped.Load(),
		TargetOfflineErrors: m.TargetOfflineErrors.Load(),
		PresenceBroadcasts:  m.PresenceBroadcasts.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a periodic metrics summary to the logger.
func (m *Metrics) LogSummary() {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"connections", s.ActiveConnections,
		"total_connections", s.TotalConnections,
		"calls_placed", s.CallsPlaced,
		"candidates_relayed", s.CandidatesRelayed,
		"messages_relayed", s.MessagesRelayed,
		"messages_dropped", s.MessagesDropped,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary()
			}
		}
	}()
}
