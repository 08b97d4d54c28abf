package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the subset of *websocket.Conn the transport uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer opens a connection to a fully built target url.
type Dialer interface {
	Dial(ctx context.Context, target string) (Conn, error)
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	dialer         *websocket.Dialer
	maxMessageSize int64
}

// NewWebsocketDialer returns a dialer with the given handshake timeout and
// inbound message size limit. A zero limit means no limit.
func NewWebsocketDialer(handshakeTimeout time.Duration, maxMessageSize int64) *WebsocketDialer {
	return &WebsocketDialer{
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: handshakeTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
		maxMessageSize: maxMessageSize,
	}
}

// Dial implements Dialer.
func (d *WebsocketDialer) Dial(ctx context.Context, target string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	if d.maxMessageSize > 0 {
		conn.SetReadLimit(d.maxMessageSize)
	}
	return conn, nil
}
