package server

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mlindgren/callbridge/pkg/model"
)

func TestPresenceRegisterLookup(t *testing.T) {
	pd := NewPresenceDirectory()
	peer := NewPeer(nil, 1, "alice")

	if replaced := pd.Register(1, "alice", peer); replaced != nil {
		t.Fatalf("Register on empty directory replaced %v", replaced)
	}

	got, ok := pd.Lookup(1)
	if !ok || got != peer {
		t.Fatalf("Lookup(1) = %v,%v, want registered peer", got, ok)
	}

	if _, ok := pd.Lookup(2); ok {
		t.Fatal("Lookup(2) found an entry for an unregistered user")
	}
}

func TestPresenceSnapshotOrder(t *testing.T) {
	pd := NewPresenceDirectory()
	pd.Register(3, "carol", NewPeer(nil, 3, "carol"))
	pd.Register(1, "alice", NewPeer(nil, 1, "alice"))
	pd.Register(2, "bob", NewPeer(nil, 2, "bob"))

	want := []model.OnlineUser{
		{UserID: 3, Username: "carol"},
		{UserID: 1, Username: "alice"},
		{UserID: 2, Username: "bob"},
	}
	if diff := cmp.Diff(want, pd.Snapshot()); diff != "" {
		t.Errorf("Snapshot mismatch (-want +got):\n%s", diff)
	}

	// Deterministic per call.
	if diff := cmp.Diff(pd.Snapshot(), pd.Snapshot()); diff != "" {
		t.Errorf("consecutive snapshots differ (-first +second):\n%s", diff)
	}
}

func TestPresenceRegisterOverwrite(t *testing.T) {
	pd := NewPresenceDirectory()
	old := NewPeer(nil, 1, "alice")
	pd.Register(1, "alice", old)

	fresh := NewPeer(nil, 1, "alice")
	replaced := pd.Register(1, "alice", fresh)
	if replaced != old {
		t.Fatalf("Register returned %v, want the replaced peer", replaced)
	}

	got, ok := pd.Lookup(1)
	if !ok || got != fresh {
		t.Fatalf("Lookup(1) = %v, want the new peer", got)
	}
	if pd.Count() != 1 {
		t.Fatalf("Count = %d, want 1", pd.Count())
	}
}

func TestPresenceUnregisterGuarded(t *testing.T) {
	pd := NewPresenceDirectory()
	old := NewPeer(nil, 1, "alice")
	pd.Register(1, "alice", old)

	fresh := NewPeer(nil, 1, "alice")
	pd.Register(1, "alice", fresh)

	// The stale connection's cleanup must not evict the newer login.
	if pd.Unregister(1, old) {
		t.Fatal("Unregister removed the entry for a stale peer")
	}
	if _, ok := pd.Lookup(1); !ok {
		t.Fatal("entry vanished after stale unregister")
	}

	if !pd.Unregister(1, fresh) {
		t.Fatal("Unregister did not remove the current peer's entry")
	}
	if _, ok := pd.Lookup(1); ok {
		t.Fatal("entry survived its own unregister")
	}

	// Idempotent on repeat.
	if pd.Unregister(1, fresh) {
		t.Fatal("second Unregister reported a removal")
	}
}

func TestPresenceOnlineConsistent(t *testing.T) {
	pd := NewPresenceDirectory()
	pd.Register(1, "alice", NewPeer(nil, 1, "alice"))
	pd.Register(2, "bob", NewPeer(nil, 2, "bob"))
	pd.Register(3, "carol", NewPeer(nil, 3, "carol"))

	users, peers := pd.Online()
	if len(users) != len(peers) {
		t.Fatalf("Online returned %d users but %d peers", len(users), len(peers))
	}

	// Both views come from the same locked pass, index for index.
	for i := range users {
		if users[i].UserID != peers[i].UserID() {
			t.Errorf("index %d: snapshot user %d but peer %d",
				i, users[i].UserID, peers[i].UserID())
		}
		if users[i].Username != peers[i].Username() {
			t.Errorf("index %d: snapshot username %q but peer %q",
				i, users[i].Username, peers[i].Username())
		}
	}

	want := []model.OnlineUser{
		{UserID: 1, Username: "alice"},
		{UserID: 2, Username: "bob"},
		{UserID: 3, Username: "carol"},
	}
	if diff := cmp.Diff(want, users); diff != "" {
		t.Errorf("Online users mismatch (-want +got):\n%s", diff)
	}
}

func TestPresenceUnregisterAbsent(t *testing.T) {
	pd := NewPresenceDirectory()
	if pd.Unregister(9, NewPeer(nil, 9, "ghost")) {
		t.Fatal("Unregister of absent user reported a removal")
	}
}
