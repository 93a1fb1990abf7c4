package server

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mlindgren/callbridge/pkg/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second // must be less than pongWait
	sendBuffer = 256
)

var (
	ErrPeerClosed     = errors.New("server: peer closed")
	ErrSendBufferFull = errors.New("server: peer send buffer full")
)

// Peer is one live WebSocket connection for an authenticated user.
// Outbound messages go through a buffered queue drained by the write pump,
// so sends never block the router.
type Peer struct {
	userID   int64
	username string
	conn     *websocket.Conn
	send     chan []byte

	closeOnce   sync.Once
	cleanupOnce sync.Once
	done        chan struct{}
}

// NewPeer wraps an accepted WebSocket connection.
func NewPeer(conn *websocket.Conn, userID int64, username string) *Peer {
	if conn != nil {
		conn.SetReadLimit(protocol.MaxMessageSize)
	}
	return &Peer{
		userID:   userID,
		username: username,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}
}

// UserID returns the user this peer is connected as.
func (p *Peer) UserID() int64 { return p.userID }

// Username returns the connected user's display name.
func (p *Peer) Username() string { return p.username }

// Send encodes a server message and queues it for delivery. It reports
// failure without blocking when the peer is closed or its queue is full;
// either condition is evidence the connection is dead, and the peer's own
// receive loop handles cleanup.
func (p *Peer) Send(msg any) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	select {
	case <-p.done:
		return ErrPeerClosed
	default:
	}
	select {
	case p.send <- data:
		return nil
	case <-p.done:
		return ErrPeerClosed
	default:
		return ErrSendBufferFull
	}
}

// Close sends a close frame with the given code and tears the connection
// down. Safe to call multiple times.
func (p *Peer) Close(code int, reason string) {
	p.closeOnce.Do(func() {
		close(p.done)
		if p.conn != nil {
			msg := websocket.FormatCloseMessage(code, reason)
			_ = p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			_ = p.conn.Close()
		}
	})
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with periodic pings. It exits when the peer is closed or a write
// fails.
func (p *Peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.Close(websocket.CloseNormalClosure, "")
	}()

	for {
		select {
		case <-p.done:
			return
		case data := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("peer write failed", "user_id", p.userID, "err", err)
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// setupRead arms the read deadline and pong handler before the receive loop.
func (p *Peer) setupRead() {
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}
