package server

import "net/http"

// routes builds the HTTP mux: auth bootstrap, the WebSocket signaling
// endpoint, a health probe, and optionally the bundled client assets.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /ws/{token}", s.handleWS)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	if s.cfg.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}

	return mux
}
