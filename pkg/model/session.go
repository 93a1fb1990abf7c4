package model

// Session represents an active authenticated session (in-memory only).
// Sessions are issued at login and live until the associated connection
// closes; the token-to-user mapping never changes once created.
type Session struct {
	Token    string
	UserID   int64
	Username string
}

// OnlineUser is one entry of a presence snapshot as sent to clients.
type OnlineUser struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}
