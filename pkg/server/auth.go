package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mlindgren/callbridge/pkg/crypto"
	"github.com/mlindgren/callbridge/pkg/datastore"
	"github.com/mlindgren/callbridge/pkg/model"
)

// invalidCredentialsMessage deliberately does not distinguish an unknown
// user from a wrong password, to avoid user enumeration.
const invalidCredentialsMessage = "invalid username or password"

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	SessionID string `json:"session_id"`
	Username  string `json:"username"`
	UserID    int64  `json:"user_id"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleRegister creates a new user account.
// 201 on success, 400 on validation failure, 409 when the username exists.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := model.ValidateUsername(req.Username); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		slog.Error("hash password failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	tx, err := s.store.Tx(r.Context())
	if err != nil {
		slog.Error("begin transaction failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := tx.GetUserByUsername(req.Username)
	if err != nil {
		slog.Error("lookup user failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "username already taken")
		return
	}

	user, err := tx.CreateUser(req.Username, hash)
	if err != nil {
		if errors.Is(err, datastore.ErrUsernameTaken) {
			writeError(w, http.StatusConflict, "username already taken")
			return
		}
		slog.Error("create user failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := tx.Commit(); err != nil {
		slog.Error("commit failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.metrics.UsersRegistered.Add(1)
	slog.Info("user registered", "user", user.Username, "user_id", user.ID)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "registration successful"})
}

// handleLogin verifies credentials and issues a session token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.store.NonTx().GetUserByUsername(req.Username)
	if err != nil {
		slog.Error("lookup user failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		s.metrics.FailedAuths.Add(1)
		writeError(w, http.StatusUnauthorized, invalidCredentialsMessage)
		return
	}

	ok, err := crypto.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !ok {
		s.metrics.FailedAuths.Add(1)
		writeError(w, http.StatusUnauthorized, invalidCredentialsMessage)
		return
	}

	sess, err := s.sessions.Create(user.ID, user.Username)
	if err != nil {
		slog.Error("create session failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("user logged in", "user", user.Username, "user_id", user.ID)
	writeJSON(w, http.StatusOK, loginResponse{
		SessionID: sess.Token,
		Username:  user.Username,
		UserID:    user.ID,
	})
}
