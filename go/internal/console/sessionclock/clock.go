// Package sessionclock derives the remaining time of a running round from the
// server's authoritative end time.
//
// The remaining value is always recomputed from the absolute end time rather
// than decremented, so ticks lost while the host was suspended are corrected
// by the next tick or by an explicit Resume.
package sessionclock

import (
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/liveconsole/go/internal/console/eventloop"
	"github.com/rs/zerolog/log"
)

// DefaultTickInterval is the refresh cadence while a round is running.
const DefaultTickInterval = time.Second

// Remaining returns max(0, ceil((endTime - now) / 1s)).
func Remaining(endTime, now time.Time) int {
	d := endTime.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// Clock tracks one armed end time. It is not safe for concurrent use; all
// methods and callbacks run on the scheduler's goroutine.
type Clock struct {
	clock    clockwork.Clock
	sched    eventloop.Scheduler
	interval time.Duration

	onTick   func(remaining int)
	onExpire func()

	endTime   time.Time
	remaining int
	armed     bool
	expired   bool
	ticker    eventloop.Stopper
}

// New creates a disarmed clock. onTick runs after every refresh while armed;
// onExpire runs once per arming when the remaining time reaches zero. Either
// callback may be nil.
func New(clock clockwork.Clock, sched eventloop.Scheduler, interval time.Duration, onTick func(int), onExpire func()) *Clock {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Clock{
		clock:    clock,
		sched:    sched,
		interval: interval,
		onTick:   onTick,
		onExpire: onExpire,
	}
}

// Arm starts tracking endTime. Arming again replaces the end time and
// restarts the tick. An end time already in the past expires immediately.
func (c *Clock) Arm(endTime time.Time) {
	c.stopTicker()
	c.endTime = endTime
	c.armed = true
	c.expired = false

	log.Debug().
		Time("end_time", endTime).
		Int("remaining", Remaining(endTime, c.clock.Now())).
		Msg("session clock armed")

	c.refresh()
	if c.armed {
		c.ticker = c.sched.Every(c.interval, c.refresh)
	}
}

// Disarm stops the tick without firing the expiry.
func (c *Clock) Disarm() {
	c.stopTicker()
	c.armed = false
	c.endTime = time.Time{}
}

// Reset disarms the clock and zeroes the remaining value.
func (c *Clock) Reset() {
	c.Disarm()
	c.remaining = 0
	c.expired = false
}

// Resume recomputes the remaining time immediately. It is called when the
// host signals it came back from a suspended state.
func (c *Clock) Resume() {
	if !c.armed {
		return
	}
	log.Debug().Msg("session clock resumed")
	c.refresh()
}

// Remaining returns the value computed by the last refresh.
func (c *Clock) Remaining() int {
	return c.remaining
}

// Armed reports whether the clock is tracking an end time.
func (c *Clock) Armed() bool {
	return c.armed
}

// EndTime returns the armed end time, or the zero time.
func (c *Clock) EndTime() time.Time {
	return c.endTime
}

func (c *Clock) refresh() {
	if !c.armed {
		return
	}

	c.remaining = Remaining(c.endTime, c.clock.Now())
	if c.onTick != nil {
		c.onTick(c.remaining)
	}

	if c.remaining > 0 || c.expired {
		return
	}

	// Tick and resume may both observe zero; only the first one expires.
	c.expired = true
	c.armed = false
	c.stopTicker()

	log.Debug().Time("end_time", c.endTime).Msg("session clock expired")
	if c.onExpire != nil {
		c.onExpire()
	}
}

func (c *Clock) stopTicker() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}
