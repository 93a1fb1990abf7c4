package server

import (
	"log/slog"

	"github.com/mlindgren/callbridge/pkg/protocol"
)

// broadcastPresence pushes the current online-users snapshot to every live
// peer. The users list is shared across recipients but each frame carries
// the recipient's own user id, so every peer gets a personalized message.
// Delivery is best-effort: a failed send is evidence that peer is already
// dead, and its own receive-loop exit will clean it up.
func (s *Server) broadcastPresence() {
	users, peers := s.presence.Online()
	for _, peer := range peers {
		if err := peer.Send(protocol.NewOnlineUsers(users, peer.UserID())); err != nil {
			slog.Debug("presence broadcast send failed", "user_id", peer.UserID(), "err", err)
		}
	}
	s.metrics.PresenceBroadcasts.Add(1)
}
