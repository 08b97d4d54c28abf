package events

import (
	"encoding/json"
	"fmt"

	"github.com/mcdev12/liveconsole/go/internal/models"
)

// Event names carried in the "event" field of the wire envelope.
const (
	RankingUpdate = "ranking_update"
	GameStart     = "game_start"
	GameStop      = "game_stop"

	// Heartbeat is sent by the client; the server's acknowledgement is not
	// interpreted.
	Heartbeat = "ping"
)

// Transport lifecycle events. They are delivered through the same
// subscription registry as server events but never arrive on the wire.
const (
	Open            = "open"
	Close           = "close"
	Error           = "error"
	Message         = "message"
	ReconnectFailed = "reconnect_failed"
)

// SessionEvents are the server broadcasts a game session subscribes to.
var SessionEvents = []string{RankingUpdate, GameStart, GameStop}

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RankingUpdatePayload is the payload of a ranking_update broadcast. Both
// fields are optional; a nil Ranking means "not part of this update".
type RankingUpdatePayload struct {
	Ranking     []models.RankingEntry `json:"ranking"`
	PlayerCount *int                  `json:"playerCount"`
}

// GameStartPayload is the payload of a game_start broadcast.
type GameStartPayload struct {
	EndTime  int64 `json:"endTime"`  // epoch millis, authoritative
	Duration *int  `json:"duration"` // seconds
}

// GameStopPayload is the payload of a game_stop broadcast. Current servers
// send an empty object; winners and ranking are applied when present.
type GameStopPayload struct {
	Winners []models.Winner       `json:"winners"`
	Ranking []models.RankingEntry `json:"ranking"`
}

// HeartbeatPayload is the body of the client heartbeat.
type HeartbeatPayload struct {
	TS int64 `json:"ts"`
}

// Decode unmarshals an event body into out. An empty body decodes to the
// zero value so that trigger-only events ({} or no data) are accepted.
func Decode(data json.RawMessage, out interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode event payload: %w", err)
	}
	return nil
}
