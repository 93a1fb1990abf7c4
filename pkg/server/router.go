package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mlindgren/callbridge/pkg/protocol"
)

// Application close codes, in the WebSocket private range.
const (
	CloseInvalidSession = 4001 // channel-open refused: unknown session token
	ClosePreempted      = 4002 // connection replaced by a newer login
)

// targetOfflineMessage is the in-band error sent back to a caller whose
// call_user named a user with no live connection. A caller needs immediate
// feedback that the call cannot be placed; other message kinds drop
// silently when the target is gone.
const targetOfflineMessage = "target not found or disconnected"

// handleWS upgrades the duplex channel and owns its receive loop.
// Lifecycle: authorize the session token, register presence, broadcast,
// then relay messages until the connection closes.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	s.metrics.TotalConnections.Add(1)

	sess, err := s.sessions.Resolve(token)
	if err != nil {
		// Refuse with a distinguishing close reason; no presence entry is
		// ever created for an unauthorized channel.
		s.metrics.FailedAuths.Add(1)
		msg := websocket.FormatCloseMessage(CloseInvalidSession, "invalid session")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = conn.Close()
		slog.Info("websocket refused: unknown session", "remote", r.RemoteAddr)
		return
	}

	peer := NewPeer(conn, sess.UserID, sess.Username)
	go peer.writePump()

	s.metrics.ActiveConnections.Add(1)
	s.metrics.SuccessfulAuths.Add(1)

	if replaced := s.presence.Register(sess.UserID, sess.Username, peer); replaced != nil {
		// Last-registered wins; the orphaned channel is closed so its own
		// receive loop runs cleanup.
		replaced.Close(ClosePreempted, "signed in from another connection")
		slog.Info("presence entry replaced by newer login", "user_id", sess.UserID)
	}

	slog.Info("user connected", "user", sess.Username, "user_id", sess.UserID)
	s.broadcastPresence()

	defer s.disconnectPeer(peer, token)

	peer.setupRead()
	for {
		_, data, err := peer.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				slog.Debug("websocket read error", "user", sess.Username, "err", err)
			}
			return
		}

		msg, err := protocol.DecodeClientMessage(data)
		if err != nil {
			s.metrics.MessagesDropped.Add(1)
			if !errors.Is(err, protocol.ErrUnknownType) {
				// Malformed frame: log and drop, connection stays open.
				slog.Warn("malformed signaling message", "user", sess.Username, "err", err)
			}
			continue
		}

		s.routeMessage(peer, msg)
	}
}

// routeMessage resolves the target at delivery time and forwards the
// reshaped payload. Only call_user surfaces an offline target back to the
// sender; everything else drops silently.
func (s *Server) routeMessage(sender *Peer, msg protocol.ClientMessage) {
	switch m := msg.(type) {
	case protocol.CallUser:
		target, ok := s.presence.Lookup(m.TargetUserID)
		if !ok {
			s.metrics.TargetOfflineErrors.Add(1)
			if err := sender.Send(protocol.NewErrorMessage(targetOfflineMessage)); err != nil {
				slog.Debug("error notification dropped", "user_id", sender.UserID(), "err", err)
			}
			return
		}
		s.forward(target, protocol.NewIncomingCall(sender.UserID(), sender.Username(), m.Offer))
		s.metrics.CallsPlaced.Add(1)

	case protocol.AnswerCall:
		if target, ok := s.presence.Lookup(m.TargetUserID); ok {
			s.forward(target, protocol.NewCallAnswered(m.Answer))
			s.metrics.CallsAnswered.Add(1)
		}

	case protocol.ICECandidate:
		if target, ok := s.presence.Lookup(m.TargetUserID); ok {
			s.forward(target, protocol.NewICECandidateEvent(m.Candidate))
			s.metrics.CandidatesRelayed.Add(1)
		}

	case protocol.CallDeclined:
		if target, ok := s.presence.Lookup(m.TargetUserID); ok {
			s.forward(target, protocol.NewCallDeclinedEvent(sender.UserID()))
			s.metrics.CallsDeclined.Add(1)
		}

	case protocol.CallEnded:
		if target, ok := s.presence.Lookup(m.TargetUserID); ok {
			s.forward(target, protocol.NewCallEndedEvent())
			s.metrics.CallsEnded.Add(1)
		}

	default:
		// Decode produces a closed set of variants; anything else was
		// already rejected as unknown.
		s.metrics.MessagesDropped.Add(1)
	}
}

// forward delivers a reshaped message to the target's channel. A failed
// send means the target is already dead; its own receive-loop exit will
// clean it up.
func (s *Server) forward(target *Peer, msg any) {
	if err := target.Send(msg); err != nil {
		slog.Debug("forward failed", "target_user_id", target.UserID(), "err", err)
		return
	}
	s.metrics.MessagesRelayed.Add(1)
}

// disconnectPeer runs connection cleanup: unregister the presence entry,
// invalidate the session, close the channel, and broadcast the new
// presence snapshot. Idempotent; a double invocation from a cleanup race
// does nothing the second time and never evicts another connection's entry.
func (s *Server) disconnectPeer(peer *Peer, token string) {
	removed := s.presence.Unregister(peer.UserID(), peer)
	s.sessions.Invalidate(token)
	peer.Close(websocket.CloseNormalClosure, "")

	peer.cleanupOnce.Do(func() {
		s.metrics.ActiveConnections.Add(-1)
		s.metrics.TotalDisconnects.Add(1)
	})

	if removed {
		slog.Info("user disconnected", "user", peer.Username(), "user_id", peer.UserID())
		s.broadcastPresence()
	}
}
