// Package relay mirrors session changes onto NATS so a shared display or a
// companion process can follow the presenter's console.
package relay

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/liveconsole/go/internal/console/session"
	"github.com/mcdev12/liveconsole/go/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Subject suffixes under <prefix>.<activityId>.
const (
	SubjectState      = "state"
	SubjectWinners    = "winners"
	SubjectError      = "error"
	SubjectConnection = "connection"
)

type Config struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: "console",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Connect dials NATS with reconnect handling and logging.
func Connect(cfg Config) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("liveconsole"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	PublishMsg(msg *nats.Msg) error
}

// Message is the body of every relayed message.
type Message struct {
	EventType  string          `json:"eventType"`
	ActivityID string          `json:"activityId"`
	Timestamp  time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload"`
}

type connectionPayload struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Relay is a session.Observer that publishes every notification.
type Relay struct {
	pub        Publisher
	prefix     string
	activityID string
	clock      clockwork.Clock

	lastConnected *bool
}

var _ session.Observer = (*Relay)(nil)

// New creates a relay for one activity. A nil clock uses the real clock.
func New(pub Publisher, prefix, activityID string, clock clockwork.Clock) *Relay {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Relay{pub: pub, prefix: prefix, activityID: activityID, clock: clock}
}

// Subject returns the full subject for a suffix.
func (r *Relay) Subject(suffix string) string {
	return fmt.Sprintf("%s.%s.%s", r.prefix, r.activityID, suffix)
}

func (r *Relay) OnStateChange(v session.View) {
	r.publish(SubjectState, v)

	// Connection flips also go to their own subject.
	if r.lastConnected == nil || *r.lastConnected != v.Connected {
		connected := v.Connected
		r.lastConnected = &connected
		r.publish(SubjectConnection, connectionPayload{Connected: connected})
	}
}

func (r *Relay) OnCelebrate(winners []models.Winner) {
	r.publish(SubjectWinners, winners)
}

func (r *Relay) OnError(err error) {
	r.publish(SubjectError, errorPayload{Message: err.Error()})
}

func (r *Relay) OnConnectionLost(err error) {
	connected := false
	r.lastConnected = &connected
	r.publish(SubjectConnection, connectionPayload{Connected: false, Error: err.Error()})
}

func (r *Relay) publish(suffix string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", suffix).Msg("failed to marshal relay payload")
		return
	}
	data, err := json.Marshal(Message{
		EventType:  suffix,
		ActivityID: r.activityID,
		Timestamp:  r.clock.Now().UTC(),
		Payload:    body,
	})
	if err != nil {
		log.Error().Err(err).Str("event_type", suffix).Msg("failed to marshal relay message")
		return
	}

	msg := &nats.Msg{
		Subject: r.Subject(suffix),
		Data:    data,
		Header: nats.Header{
			"Event-Type":  []string{suffix},
			"Activity-ID": []string{r.activityID},
		},
	}
	if err := r.pub.PublishMsg(msg); err != nil {
		log.Warn().Err(err).Str("subject", msg.Subject).Msg("failed to relay session event")
	}
}
