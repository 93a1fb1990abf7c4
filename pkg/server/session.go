package server

import (
	"errors"
	"sync"

	"github.com/mlindgren/callbridge/pkg/crypto"
	"github.com/mlindgren/callbridge/pkg/model"
)

// ErrSessionNotFound is returned when a token does not resolve to a session.
var ErrSessionNotFound = errors.New("server: session not found")

// SessionManager issues and resolves ephemeral session tokens.
// A token, once issued, maps to the same user for its whole lifetime;
// sessions are lost on restart by design and re-acquired via login.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session // token -> session
}

// NewSessionManager creates a new session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*model.Session),
	}
}

// Create issues a new session for an authenticated user.
func (sm *SessionManager) Create(userID int64, username string) (*model.Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	// 128-bit random tokens; regenerate on the astronomically unlikely clash.
	var token string
	for {
		t, err := crypto.GenerateSessionToken()
		if err != nil {
			return nil, err
		}
		if _, exists := sm.sessions[t]; !exists {
			token = t
			break
		}
	}

	sess := &model.Session{
		Token:    token,
		UserID:   userID,
		Username: username,
	}
	sm.sessions[token] = sess
	return sess, nil
}

// Resolve returns the session for a token, or ErrSessionNotFound.
func (sm *SessionManager) Resolve(token string) (*model.Session, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sess, ok := sm.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Invalidate removes a session. No-op if the token is already gone.
func (sm *SessionManager) Invalidate(token string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, token)
}

// Count returns the number of active sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}
