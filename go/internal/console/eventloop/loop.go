// Package eventloop provides the single cooperative scheduling domain the
// console runs its game session in. Every mutation of session, clock and
// leaderboard state happens on the loop goroutine, so those components need
// no locking; other goroutines hand work to it with Post or Do.
package eventloop

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ErrStopped is returned when work is handed to a loop that is no longer
// running.
var ErrStopped = errors.New("event loop stopped")

const defaultInboxSize = 256

// Scheduler creates timers whose callbacks run on a single goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Stopper
	Every(d time.Duration, fn func()) Stopper
}

// Stopper cancels a timer. Stop reports whether the call stopped it.
type Stopper interface {
	Stop() bool
}

// Loop runs posted functions one at a time, in order.
type Loop struct {
	clock clockwork.Clock
	inbox chan func()

	done     chan struct{}
	doneOnce sync.Once
}

// New creates a loop. A nil clock means the real clock.
func New(clock clockwork.Clock) *Loop {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Loop{
		clock: clock,
		inbox: make(chan func(), defaultInboxSize),
		done:  make(chan struct{}),
	}
}

// Clock returns the clock the loop's timers run on.
func (l *Loop) Clock() clockwork.Clock {
	return l.clock
}

// Run processes posted work until ctx is cancelled. It must be called once.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()

	log.Debug().Msg("event loop started")
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("event loop shutting down")
			return nil
		case fn := <-l.inbox:
			l.invoke(fn)
		}
	}
}

func (l *Loop) stop() {
	l.doneOnce.Do(func() { close(l.done) })
}

// Done is closed once the loop has stopped.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered panic in event loop task")
		}
	}()
	fn()
}

// Post queues fn to run on the loop. It returns false if the loop has
// stopped. Post must not be called from the loop goroutine while the inbox
// is full.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.inbox <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish. It must not be called
// from the loop goroutine.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// fn may still have completed just before the loop stopped.
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}
