// Package transport maintains the console's single duplex websocket connection
// to the event server.
//
// It reconnects at a fixed interval up to a bounded number of attempts, sends
// a heartbeat while connected and fans inbound events out to subscribers.
// Lifecycle changes (open, close, error, reconnect_failed) are delivered
// through the same subscription registry as server events.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/liveconsole/go/internal/console/events"
	"github.com/rs/zerolog/log"
)

// ErrNotConnected is returned by Send when there is no open connection.
// Messages are never queued.
var ErrNotConnected = errors.New("transport not connected")

// State is the connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config holds reconnect and liveness settings.
type Config struct {
	MaxReconnects     int
	ReconnectInterval time.Duration
	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
	HandshakeTimeout  time.Duration
	MaxMessageSize    int64
}

// DefaultConfig returns the settings the console ships with.
func DefaultConfig() Config {
	return Config{
		MaxReconnects:     10,
		ReconnectInterval: 3 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		WriteTimeout:      10 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		MaxMessageSize:    1 << 20,
	}
}

// Stats is a point-in-time view of the connection for the status surface.
type Stats struct {
	State         string    `json:"state"`
	ClientID      string    `json:"clientId"`
	ConnectionID  string    `json:"connectionId,omitempty"`
	Attempts      int       `json:"reconnectAttempts"`
	LastError     string    `json:"lastError,omitempty"`
	ConnectedAt   time.Time `json:"connectedAt,omitempty"`
	Subscriptions int       `json:"subscriptions"`
}

// Transport owns at most one live connection. It is safe for concurrent use.
type Transport struct {
	dialer   Dialer
	clock    clockwork.Clock
	config   Config
	clientID string
	subs     *registry

	mu          sync.Mutex
	state       State
	target      string
	gen         uint64
	conn        Conn
	connID      string
	connectedAt time.Time
	attempts    int
	lastErr     error
	manualClose bool
	cancelDial  context.CancelFunc
	redial      clockwork.Timer
	stopBeat    chan struct{}

	writeMu sync.Mutex
}

// New creates a disconnected transport. A nil dialer dials real websockets;
// a nil clock uses the real clock.
func New(dialer Dialer, clock clockwork.Clock, config Config) *Transport {
	defaults := DefaultConfig()
	if config.ReconnectInterval <= 0 {
		config.ReconnectInterval = defaults.ReconnectInterval
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if config.MaxReconnects < 0 {
		config.MaxReconnects = 0
	}
	if dialer == nil {
		dialer = NewWebsocketDialer(config.HandshakeTimeout, config.MaxMessageSize)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Transport{
		dialer:   dialer,
		clock:    clock,
		config:   config,
		clientID: uuid.New().String(),
		subs:     newRegistry(),
	}
}

// ClientID identifies this process to the server across reconnects.
func (t *Transport) ClientID() string {
	return t.clientID
}

// Connect tears down any existing connection and dials rawURL with params as
// its query string. It returns once the dial has been started; the open
// event reports success.
func (t *Transport) Connect(rawURL string, params url.Values) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse websocket url: %w", err)
	}
	query := u.Query()
	for key, values := range params {
		query.Del(key)
		for _, v := range values {
			query.Add(key, v)
		}
	}
	query.Set("clientId", t.clientID)
	u.RawQuery = query.Encode()

	t.mu.Lock()
	wasConnected := t.state == StateConnected
	t.teardownLocked()
	t.gen++
	gen := t.gen
	t.target = u.String()
	t.state = StateConnecting
	t.attempts = 0
	t.lastErr = nil
	t.manualClose = false
	ctx := t.dialContextLocked()
	t.mu.Unlock()

	log.Info().
		Str("host", u.Host).
		Str("path", u.Path).
		Str("client_id", t.clientID).
		Msg("connecting to event server")

	if wasConnected {
		t.subs.dispatch(Event{Name: events.Close})
	}

	go t.dial(ctx, gen, u.String())
	return nil
}

// Close disconnects and suppresses automatic reconnection until the next
// Connect.
func (t *Transport) Close() {
	t.mu.Lock()
	active := t.state != StateDisconnected || t.redial != nil
	t.manualClose = true
	t.gen++
	t.teardownLocked()
	t.state = StateDisconnected
	t.mu.Unlock()

	if active {
		log.Info().Str("client_id", t.clientID).Msg("event server connection closed")
		t.subs.dispatch(Event{Name: events.Close})
	}
}

// Send writes one event. It returns ErrNotConnected without queueing when
// there is no open connection. A failed write starts the reconnect path.
func (t *Transport) Send(event string, data interface{}) error {
	t.mu.Lock()
	if t.state != StateConnected || t.conn == nil {
		t.mu.Unlock()
		return ErrNotConnected
	}
	conn, gen := t.conn, t.gen
	t.mu.Unlock()

	if err := t.write(conn, event, data); err != nil {
		t.fail(gen, fmt.Errorf("send %s: %w", event, err))
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}

// On registers handler for event.
func (t *Transport) On(event string, handler Handler) *Subscription {
	return t.subs.add(event, handler)
}

// Off removes every handler registered for the given events.
func (t *Transport) Off(names ...string) {
	if n := t.subs.clear(names...); n > 0 {
		log.Debug().Strs("events", names).Int("removed", n).Msg("cleared event handlers")
	}
}

// State returns the current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// IsConnected reports whether a connection is open.
func (t *Transport) IsConnected() bool {
	return t.State() == StateConnected
}

// Attempts returns the number of reconnects scheduled since the last open.
func (t *Transport) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

// LastError returns the error that caused the last disconnect, if any.
func (t *Transport) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Stats returns a snapshot for diagnostics.
func (t *Transport) Stats() Stats {
	t.mu.Lock()
	s := Stats{
		State:        t.state.String(),
		ClientID:     t.clientID,
		ConnectionID: t.connID,
		Attempts:     t.attempts,
		ConnectedAt:  t.connectedAt,
	}
	if t.lastErr != nil {
		s.LastError = t.lastErr.Error()
	}
	t.mu.Unlock()

	s.Subscriptions = t.subs.count()
	return s
}

func (t *Transport) dialContextLocked() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), t.config.HandshakeTimeout)
	t.cancelDial = cancel
	return ctx
}

func (t *Transport) dial(ctx context.Context, gen uint64, target string) {
	conn, err := t.dialer.Dial(ctx, target)
	if err != nil {
		t.fail(gen, err)
		return
	}

	t.mu.Lock()
	if gen != t.gen || t.manualClose {
		t.mu.Unlock()
		_ = conn.Close()
		return
	}
	if t.cancelDial != nil {
		t.cancelDial()
		t.cancelDial = nil
	}
	t.conn = conn
	t.connID = uuid.New().String()
	t.connectedAt = t.clock.Now()
	t.state = StateConnected
	t.attempts = 0
	t.lastErr = nil
	stop := make(chan struct{})
	t.stopBeat = stop
	connID := t.connID
	ticker := t.clock.NewTicker(t.config.HeartbeatInterval)
	t.mu.Unlock()

	log.Info().
		Str("connection_id", connID).
		Str("client_id", t.clientID).
		Msg("event server connection established")

	go t.heartbeat(gen, conn, ticker, stop)

	// Subscribers re-register on open before the first server event is read.
	t.subs.dispatch(Event{Name: events.Open})
	go t.readLoop(gen, conn, connID)
}

func (t *Transport) readLoop(gen uint64, conn Conn, connID string) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("connection_id", connID).Msg("unexpected websocket close")
			}
			t.fail(gen, fmt.Errorf("read: %w", err))
			return
		}

		var env events.Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Event == "" {
			log.Warn().
				Err(err).
				Str("connection_id", connID).
				Int("bytes", len(message)).
				Msg("dropping malformed frame")
			continue
		}

		if !t.current(gen) {
			return
		}
		t.subs.dispatch(Event{Name: events.Message, Data: message})
		t.subs.dispatch(Event{Name: env.Event, Data: env.Data})
	}
}

func (t *Transport) heartbeat(gen uint64, conn Conn, ticker clockwork.Ticker, stop <-chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			ping := events.HeartbeatPayload{TS: t.clock.Now().UnixMilli()}
			if err := t.write(conn, events.Heartbeat, ping); err != nil {
				t.fail(gen, fmt.Errorf("heartbeat: %w", err))
				return
			}
		}
	}
}

func (t *Transport) write(conn Conn, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	frame, err := json.Marshal(events.Envelope{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	_ = conn.SetWriteDeadline(t.clock.Now().Add(t.config.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// fail handles a dial, read or write failure on generation gen. Failures of
// a superseded or deliberately closed connection are ignored, so each
// connection feeds the reconnect path at most once.
func (t *Transport) fail(gen uint64, err error) {
	t.mu.Lock()
	if gen != t.gen || t.manualClose {
		t.mu.Unlock()
		return
	}
	wasConnected := t.state == StateConnected
	connID := t.connID
	t.gen++
	t.teardownLocked()
	t.state = StateDisconnected
	t.lastErr = err

	if t.attempts >= t.config.MaxReconnects {
		attempts := t.attempts
		t.mu.Unlock()

		log.Error().
			Err(err).
			Str("client_id", t.clientID).
			Int("attempts", attempts).
			Msg("reconnect attempts exhausted")

		t.subs.dispatch(Event{Name: events.Error, Err: err})
		if wasConnected {
			t.subs.dispatch(Event{Name: events.Close, Err: err})
		}
		t.subs.dispatch(Event{Name: events.ReconnectFailed, Err: err})
		return
	}

	t.attempts++
	attempt := t.attempts
	next := t.gen
	t.redial = t.clock.AfterFunc(t.config.ReconnectInterval, func() {
		t.reconnect(next)
	})
	t.mu.Unlock()

	log.Warn().
		Err(err).
		Str("connection_id", connID).
		Int("attempt", attempt).
		Int("max_attempts", t.config.MaxReconnects).
		Dur("retry_in", t.config.ReconnectInterval).
		Msg("event server connection lost, scheduling reconnect")

	t.subs.dispatch(Event{Name: events.Error, Err: err})
	if wasConnected {
		t.subs.dispatch(Event{Name: events.Close, Err: err})
	}
}

func (t *Transport) reconnect(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.manualClose {
		t.mu.Unlock()
		return
	}
	t.redial = nil
	t.state = StateConnecting
	target := t.target
	attempt := t.attempts
	ctx := t.dialContextLocked()
	t.mu.Unlock()

	log.Info().Int("attempt", attempt).Msg("reconnecting to event server")
	t.dial(ctx, gen, target)
}

// teardownLocked releases the connection and every timer tied to it.
func (t *Transport) teardownLocked() {
	if t.cancelDial != nil {
		t.cancelDial()
		t.cancelDial = nil
	}
	if t.redial != nil {
		t.redial.Stop()
		t.redial = nil
	}
	if t.stopBeat != nil {
		close(t.stopBeat)
		t.stopBeat = nil
	}
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	t.connID = ""
	t.connectedAt = time.Time{}
}

func (t *Transport) current(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return gen == t.gen && !t.manualClose
}
