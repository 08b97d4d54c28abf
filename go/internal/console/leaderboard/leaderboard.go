// Package leaderboard turns successive ranking snapshots into the rendered
// leaderboard: per-participant score deltas and a short-lived highlight for
// anyone who just scored or just joined.
package leaderboard

import (
	"time"

	"github.com/mcdev12/liveconsole/go/internal/console/eventloop"
	"github.com/mcdev12/liveconsole/go/internal/models"
)

// DefaultHighlightWindow is how long a delta stays visible.
const DefaultHighlightWindow = 500 * time.Millisecond

// Entry is a ranking entry as rendered.
type Entry struct {
	models.RankingEntry
	ScoreDelta    float64 `json:"scoreDelta"`
	IsHighlighted bool    `json:"isHighlighted"`
}

// Reconciler owns the previous-score mapping and the pending decay timer.
// It is not safe for concurrent use; run it on the event loop.
type Reconciler struct {
	sched   eventloop.Scheduler
	window  time.Duration
	onDecay func()

	prev    map[models.ID]float64
	entries []Entry
	decay   eventloop.Stopper
}

// New creates an empty reconciler. onDecay, if set, runs after the highlight
// window cleared the deltas so the caller can re-render.
func New(sched eventloop.Scheduler, window time.Duration, onDecay func()) *Reconciler {
	if window <= 0 {
		window = DefaultHighlightWindow
	}
	return &Reconciler{
		sched:   sched,
		window:  window,
		onDecay: onDecay,
		prev:    map[models.ID]float64{},
	}
}

// Reconcile applies a new snapshot and returns the rendered entries.
func (r *Reconciler) Reconcile(snapshot []models.RankingEntry) []Entry {
	next := make(map[models.ID]float64, len(snapshot))
	entries := make([]Entry, 0, len(snapshot))
	highlighted := false

	for _, e := range snapshot {
		out := Entry{RankingEntry: e}
		if prevScore, ok := r.prev[e.UserID]; ok {
			if delta := e.Score - prevScore; delta > 0 {
				out.ScoreDelta = delta
				out.IsHighlighted = true
			}
		} else {
			out.IsHighlighted = true
		}
		if out.IsHighlighted {
			highlighted = true
		}
		next[e.UserID] = e.Score
		entries = append(entries, out)
	}

	r.prev = next
	r.entries = entries

	r.cancelDecay()
	if highlighted {
		r.decay = r.sched.AfterFunc(r.window, r.clearHighlights)
	}
	return r.Entries()
}

// Seed installs a baseline without highlighting anyone, for example the
// ranking adopted during a resync.
func (r *Reconciler) Seed(snapshot []models.RankingEntry) []Entry {
	r.cancelDecay()
	r.prev = make(map[models.ID]float64, len(snapshot))
	r.entries = make([]Entry, 0, len(snapshot))
	for _, e := range snapshot {
		r.prev[e.UserID] = e.Score
		r.entries = append(r.entries, Entry{RankingEntry: e})
	}
	return r.Entries()
}

// Entries returns a copy of the current rendered list.
func (r *Reconciler) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Reset forgets every snapshot and cancels a pending decay.
func (r *Reconciler) Reset() {
	r.cancelDecay()
	r.prev = map[models.ID]float64{}
	r.entries = nil
}

func (r *Reconciler) clearHighlights() {
	r.decay = nil
	for i := range r.entries {
		r.entries[i].ScoreDelta = 0
		r.entries[i].IsHighlighted = false
	}
	if r.onDecay != nil {
		r.onDecay()
	}
}

func (r *Reconciler) cancelDecay() {
	if r.decay != nil {
		r.decay.Stop()
		r.decay = nil
	}
}
