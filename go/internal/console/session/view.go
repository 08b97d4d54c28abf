package session

import (
	"fmt"

	"github.com/mcdev12/liveconsole/go/internal/console/leaderboard"
	"github.com/mcdev12/liveconsole/go/internal/models"
)

// Status is the game lifecycle state. The values match the console API.
type Status int

const (
	StatusUnselected Status = -1
	StatusReady      Status = 0
	StatusRunning    Status = 1
	StatusFinished   Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusUnselected:
		return "unselected"
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusFinished:
		return "finished"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// View is an immutable snapshot of the session, published after every change.
type View struct {
	ActivityID       string              `json:"activityId"`
	Status           Status              `json:"status"`
	StatusText       string              `json:"statusText"`
	Preparing        bool                `json:"preparing"`
	PrepareRemaining int                 `json:"prepareRemaining"`
	Round            *models.Round       `json:"round,omitempty"`
	EndTime          int64               `json:"endTime,omitempty"` // epoch millis, set only while running
	TotalDuration    int                 `json:"totalDuration"`     // seconds
	Remaining        int                 `json:"remaining"`         // seconds
	PlayerCount      int                 `json:"playerCount"`
	Ranking          []leaderboard.Entry `json:"ranking"`
	Winners          []models.Winner     `json:"winners"`
	Celebrating      bool                `json:"celebrating"`
	Rounds           []models.Round      `json:"rounds"`
	Connected        bool                `json:"connected"`
}

// Progress is the fraction of the round left, for a ring countdown.
func (v View) Progress() float64 {
	if v.TotalDuration <= 0 || v.Status != StatusRunning {
		return 0
	}
	p := float64(v.Remaining) / float64(v.TotalDuration)
	if p > 1 {
		return 1
	}
	return p
}
