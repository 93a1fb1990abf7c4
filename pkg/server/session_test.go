package server

import (
	"errors"
	"testing"
)

func TestSessionCreateResolve(t *testing.T) {
	sm := NewSessionManager()

	sess, err := sm.Create(42, "alice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(sess.Token) != 32 {
		t.Fatalf("token length = %d, want 32", len(sess.Token))
	}

	got, err := sm.Resolve(sess.Token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.UserID != 42 || got.Username != "alice" {
		t.Errorf("Resolve = %+v, want user 42/alice", got)
	}
}

func TestSessionResolveUnknown(t *testing.T) {
	sm := NewSessionManager()

	_, err := sm.Resolve("deadbeefdeadbeefdeadbeefdeadbeef")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Resolve unknown = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionInvalidate(t *testing.T) {
	sm := NewSessionManager()

	sess, err := sm.Create(1, "alice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	sm.Invalidate(sess.Token)
	if _, err := sm.Resolve(sess.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Resolve after Invalidate = %v, want ErrSessionNotFound", err)
	}

	// Invalidate is a no-op when the token is already gone.
	sm.Invalidate(sess.Token)
	if sm.Count() != 0 {
		t.Fatalf("Count = %d, want 0", sm.Count())
	}
}

func TestSessionMultiplePerUser(t *testing.T) {
	sm := NewSessionManager()

	first, err := sm.Create(7, "bob")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := sm.Create(7, "bob")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.Token == second.Token {
		t.Fatal("two sessions share a token")
	}
	if sm.Count() != 2 {
		t.Fatalf("Count = %d, want 2", sm.Count())
	}

	// Both tokens keep resolving to the same user; a mapping never changes.
	for _, tok := range []string{first.Token, second.Token} {
		got, err := sm.Resolve(tok)
		if err != nil {
			t.Fatalf("Resolve(%s): %v", tok, err)
		}
		if got.UserID != 7 {
			t.Errorf("Resolve(%s).UserID = %d, want 7", tok, got.UserID)
		}
	}
}
