package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/mlindgren/callbridge/pkg/datastore"
)

func newAuthTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	store, err := datastore.NewProviderFactory(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	s := New(DefaultConfig(), Dependencies{Store: store})
	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return s, ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestRegister(t *testing.T) {
	_, ts := newAuthTestServer(t)

	tests := map[string]struct {
		username   string
		password   string
		wantStatus int
	}{
		"valid":              {"alice", "secret", http.StatusCreated},
		"username too short": {"ab", "secret", http.StatusBadRequest},
		"username too long":  {"abcdefghijklmnopqrstu", "secret", http.StatusBadRequest},
		"bad characters":     {"al ice", "secret", http.StatusBadRequest},
		"password too short": {"carol", "abc", http.StatusBadRequest},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/register", credentialsRequest{
				Username: tt.username,
				Password: tt.password,
			})
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	_, ts := newAuthTestServer(t)

	resp := postJSON(t, ts.URL+"/register", credentialsRequest{Username: "alice", Password: "secret"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first register status = %d, want 201", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/register", credentialsRequest{Username: "alice", Password: "other"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want 409", resp.StatusCode)
	}

	// The original account still logs in with its own password.
	resp = postJSON(t, ts.URL+"/login", credentialsRequest{Username: "alice", Password: "secret"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login after duplicate attempt status = %d, want 200", resp.StatusCode)
	}
}

func TestLogin(t *testing.T) {
	s, ts := newAuthTestServer(t)

	resp := postJSON(t, ts.URL+"/register", credentialsRequest{Username: "alice", Password: "secret"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, want 201", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/login", credentialsRequest{Username: "alice", Password: "secret"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}

	var got loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if got.Username != "alice" {
		t.Errorf("username = %q, want alice", got.Username)
	}
	if got.SessionID == "" {
		t.Fatal("login returned no session token")
	}

	sess, err := s.sessions.Resolve(got.SessionID)
	if err != nil {
		t.Fatalf("issued token does not resolve: %v", err)
	}
	if sess.UserID != got.UserID || sess.Username != "alice" {
		t.Errorf("resolved session = %+v, want user %d/alice", sess, got.UserID)
	}
}

func TestLoginRejected(t *testing.T) {
	s, ts := newAuthTestServer(t)

	resp := postJSON(t, ts.URL+"/register", credentialsRequest{Username: "alice", Password: "secret"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, want 201", resp.StatusCode)
	}

	tests := map[string]credentialsRequest{
		"wrong password": {Username: "alice", Password: "wrong"},
		"unknown user":   {Username: "nobody", Password: "secret"},
	}

	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/login", req)
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", resp.StatusCode)
			}

			// Uniform error body, no hint which credential was wrong.
			var body map[string]string
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body["error"] != invalidCredentialsMessage {
				t.Errorf("error = %q, want %q", body["error"], invalidCredentialsMessage)
			}
		})
	}

	if n := s.sessions.Count(); n != 0 {
		t.Fatalf("failed logins created %d sessions", n)
	}
}
