// Package eventlooptest provides a hand-driven eventloop.Scheduler for tests.
package eventlooptest

import (
	"time"

	"github.com/mcdev12/liveconsole/go/internal/console/eventloop"
)

// Timer is a timer registered with a ManualScheduler.
type Timer struct {
	Delay     time.Duration
	Repeating bool

	fn      func()
	stopped bool
	fired   bool
}

// Stop implements eventloop.Stopper.
func (t *Timer) Stop() bool {
	if t.stopped || (t.fired && !t.Repeating) {
		return false
	}
	t.stopped = true
	return true
}

// Active reports whether the timer would still run if fired.
func (t *Timer) Active() bool {
	return !t.stopped && !(t.fired && !t.Repeating)
}

// Fire runs the callback the way the loop would: one-shot timers run at most
// once and stopped timers never run.
func (t *Timer) Fire() bool {
	if !t.Active() {
		return false
	}
	t.fired = true
	t.fn()
	return true
}

// ManualScheduler records timers and runs them only when a test fires them.
// It is not safe for concurrent use.
type ManualScheduler struct {
	Timers []*Timer
}

var _ eventloop.Scheduler = (*ManualScheduler)(nil)

// AfterFunc implements eventloop.Scheduler.
func (s *ManualScheduler) AfterFunc(d time.Duration, fn func()) eventloop.Stopper {
	t := &Timer{Delay: d, fn: fn}
	s.Timers = append(s.Timers, t)
	return t
}

// Every implements eventloop.Scheduler.
func (s *ManualScheduler) Every(d time.Duration, fn func()) eventloop.Stopper {
	t := &Timer{Delay: d, Repeating: true, fn: fn}
	s.Timers = append(s.Timers, t)
	return t
}

// Active returns the timers that have not been stopped or spent.
func (s *ManualScheduler) Active() []*Timer {
	var out []*Timer
	for _, t := range s.Timers {
		if t.Active() {
			out = append(out, t)
		}
	}
	return out
}

// FireAll fires every active timer once, in registration order, and returns
// how many ran.
func (s *ManualScheduler) FireAll() int {
	n := 0
	for _, t := range s.Active() {
		if t.Fire() {
			n++
		}
	}
	return n
}
