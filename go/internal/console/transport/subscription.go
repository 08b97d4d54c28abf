package transport

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/mcdev12/liveconsole/go/internal/console/events"
	"github.com/rs/zerolog/log"
)

// Event is one delivery to a handler. Data holds the raw payload of a server
// event, or the whole envelope for the message event; Err is set for error
// and close events caused by a failure.
type Event struct {
	Name string
	Data json.RawMessage
	Err  error
}

// Decode unmarshals the payload into out; an empty payload leaves out as is.
func (e Event) Decode(out interface{}) error {
	return events.Decode(e.Data, out)
}

// Handler receives events. Handlers for one event run in registration order
// on the goroutine that observed the event.
type Handler func(Event)

// Subscription is the handle returned by On.
type Subscription struct {
	registry *registry
	event    string
	handler  Handler
	active   atomic.Bool
	once     sync.Once
}

// Cancel removes the handler. It is safe to call more than once, and after
// the transport has been closed or the event bulk-cleared.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.active.Store(false)
		s.registry.remove(s)
	})
}

// Active reports whether the handler is still registered.
func (s *Subscription) Active() bool {
	return s.active.Load()
}

type registry struct {
	mu       sync.Mutex
	handlers map[string][]*Subscription
}

func newRegistry() *registry {
	return &registry{handlers: make(map[string][]*Subscription)}
}

func (r *registry) add(event string, h Handler) *Subscription {
	sub := &Subscription{registry: r, event: event, handler: h}
	sub.active.Store(true)

	r.mu.Lock()
	r.handlers[event] = append(r.handlers[event], sub)
	r.mu.Unlock()
	return sub
}

func (r *registry) remove(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.handlers[sub.event]
	for i, s := range subs {
		if s == sub {
			// Copy so snapshots taken by an in-flight dispatch stay intact.
			next := make([]*Subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(r.handlers, sub.event)
			} else {
				r.handlers[sub.event] = next
			}
			return
		}
	}
}

func (r *registry) clear(names ...string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for _, name := range names {
		for _, s := range r.handlers[name] {
			s.active.Store(false)
			removed++
		}
		delete(r.handlers, name)
	}
	return removed
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, subs := range r.handlers {
		n += len(subs)
	}
	return n
}

func (r *registry) dispatch(ev Event) {
	r.mu.Lock()
	subs := r.handlers[ev.Name]
	r.mu.Unlock()

	for _, s := range subs {
		// Cancelled or cleared while this dispatch was running.
		if !s.active.Load() {
			continue
		}
		invoke(s, ev)
	}
}

func invoke(s *Subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("event", ev.Name).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()
	s.handler(ev)
}
