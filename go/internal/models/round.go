package models

import "time"

// RoundStatus mirrors the status codes the console API uses for rounds and
// for the current game session.
type RoundStatus int

const (
	RoundStatusUnselected RoundStatus = -1
	RoundStatusReady      RoundStatus = 0
	RoundStatusRunning    RoundStatus = 1
	RoundStatusFinished   RoundStatus = 2
)

// DefaultRoundDuration is used when a round descriptor carries no duration.
const DefaultRoundDuration = 30 * time.Second

// Round describes one playable round of an activity.
type Round struct {
	ID       ID          `json:"id"`
	Name     string      `json:"name,omitempty"`
	Status   RoundStatus `json:"status"`
	Duration int         `json:"duration"` // seconds
}

// DurationOr returns the round duration, or fallback when the round has none.
func (r Round) DurationOr(fallback time.Duration) time.Duration {
	if r.Duration <= 0 {
		return fallback
	}
	return time.Duration(r.Duration) * time.Second
}

// Selectable reports whether a presenter may still pick this round.
func (r Round) Selectable() bool {
	return r.Status != RoundStatusFinished
}

// CurrentRound is the session snapshot used to resynchronize after a page
// load or a reconnect.
type CurrentRound struct {
	Round       *Round         `json:"round"`
	Status      RoundStatus    `json:"status"`
	Remaining   int            `json:"remaining"`         // seconds, legacy servers
	EndTime     int64          `json:"endTime,omitempty"` // epoch millis
	Ranking     []RankingEntry `json:"ranking,omitempty"`
	PlayerCount *int           `json:"playerCount,omitempty"`
}

// StartResult is the acknowledgement of a start command.
type StartResult struct {
	EndTime  int64 `json:"endTime"`  // epoch millis
	Duration int   `json:"duration"` // seconds
}

// StopResult is the acknowledgement of a stop command.
type StopResult struct {
	Winners []Winner       `json:"winners,omitempty"`
	Ranking []RankingEntry `json:"ranking,omitempty"`
}

// EpochMillis converts an epoch-millisecond timestamp to a time.Time. Zero
// stays the zero time.
func EpochMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
