package eventloop

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a one-shot or repeating timer bound to a loop. Its callback runs
// on the loop goroutine, and Stop must be called from the loop goroutine as
// well; a callback that was already queued when Stop ran is discarded.
type Timer struct {
	timer   clockwork.Timer
	quit    chan struct{}
	stopped bool
}

// AfterFunc runs fn on the loop once d has elapsed on the loop's clock.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Stopper {
	t := &Timer{}
	t.timer = l.clock.AfterFunc(d, func() {
		l.Post(func() {
			if t.stopped {
				return
			}
			t.stopped = true
			fn()
		})
	})
	return t
}

// Every runs fn on the loop every d until stopped. Ticks that arrive while
// the loop is busy may be coalesced by the underlying ticker.
func (l *Loop) Every(d time.Duration, fn func()) Stopper {
	t := &Timer{quit: make(chan struct{})}
	ticker := l.clock.NewTicker(d)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-t.quit:
				return
			case <-l.done:
				return
			case <-ticker.Chan():
				l.Post(func() {
					if t.stopped {
						return
					}
					fn()
				})
			}
		}
	}()
	return t
}

// Stop cancels the timer. It reports false if the timer had already fired
// (one-shot) or been stopped.
func (t *Timer) Stop() bool {
	if t.stopped {
		return false
	}
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
	}
	if t.quit != nil {
		close(t.quit)
	}
	return true
}
