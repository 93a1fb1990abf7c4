package server

import (
	"sync"

	"github.com/mlindgren/callbridge/pkg/model"
)

// PresenceDirectory tracks which users currently have a live connection.
// It is keyed by user ID: a second login for the same user overwrites the
// entry (last-registered wins) and the previous peer is reported back to
// the caller as an orphan.
type PresenceDirectory struct {
	mu      sync.RWMutex
	entries map[int64]*presenceEntry
	order   []int64 // insertion order, for deterministic snapshots
}

type presenceEntry struct {
	userID   int64
	username string
	peer     *Peer
}

// NewPresenceDirectory creates an empty presence directory.
func NewPresenceDirectory() *PresenceDirectory {
	return &PresenceDirectory{
		entries: make(map[int64]*presenceEntry),
	}
}

// Register inserts or overwrites the entry for userID and returns the
// replaced peer, if any. A replaced peer is no longer routable and must be
// closed by the caller.
func (pd *PresenceDirectory) Register(userID int64, username string, peer *Peer) (replaced *Peer) {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	if existing, ok := pd.entries[userID]; ok {
		replaced = existing.peer
		existing.username = username
		existing.peer = peer
		return replaced
	}

	pd.entries[userID] = &presenceEntry{userID: userID, username: username, peer: peer}
	pd.order = append(pd.order, userID)
	return nil
}

// Unregister removes the entry for userID only if it still belongs to peer.
// The guard makes disconnect cleanup idempotent and keeps a stale
// connection's cleanup from evicting a newer login. Reports whether an
// entry was removed.
func (pd *PresenceDirectory) Unregister(userID int64, peer *Peer) bool {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	existing, ok := pd.entries[userID]
	if !ok || existing.peer != peer {
		return false
	}
	delete(pd.entries, userID)
	for i, id := range pd.order {
		if id == userID {
			pd.order = append(pd.order[:i], pd.order[i+1:]...)
			break
		}
	}
	return true
}

// Lookup resolves a user's live peer for message routing.
func (pd *PresenceDirectory) Lookup(userID int64) (*Peer, bool) {
	pd.mu.RLock()
	defer pd.mu.RUnlock()
	entry, ok := pd.entries[userID]
	if !ok {
		return nil, false
	}
	return entry.peer, true
}

// Snapshot returns all online users in registration order.
func (pd *PresenceDirectory) Snapshot() []model.OnlineUser {
	pd.mu.RLock()
	defer pd.mu.RUnlock()
	users := make([]model.OnlineUser, 0, len(pd.order))
	for _, id := range pd.order {
		entry := pd.entries[id]
		users = append(users, model.OnlineUser{UserID: entry.userID, Username: entry.username})
	}
	return users
}

// Online returns the presence snapshot together with the peers it
// describes, captured under a single lock so a concurrent register or
// unregister cannot make the two views disagree within one broadcast.
func (pd *PresenceDirectory) Online() ([]model.OnlineUser, []*Peer) {
	pd.mu.RLock()
	defer pd.mu.RUnlock()
	users := make([]model.OnlineUser, 0, len(pd.order))
	peers := make([]*Peer, 0, len(pd.order))
	for _, id := range pd.order {
		entry := pd.entries[id]
		users = append(users, model.OnlineUser{UserID: entry.userID, Username: entry.username})
		peers = append(peers, entry.peer)
	}
	return users, peers
}

// Peers returns all live peers in registration order (snapshot).
func (pd *PresenceDirectory) Peers() []*Peer {
	pd.mu.RLock()
	defer pd.mu.RUnlock()
	peers := make([]*Peer, 0, len(pd.order))
	for _, id := range pd.order {
		peers = append(peers, pd.entries[id].peer)
	}
	return peers
}

// Count returns the number of online users.
func (pd *PresenceDirectory) Count() int {
	pd.mu.RLock()
	defer pd.mu.RUnlock()
	return len(pd.entries)
}
