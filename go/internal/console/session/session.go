// Package session implements the presenter's game session: the
// unselected, ready, running and finished lifecycle of one round, the local
// preparation countdown, idempotent start and stop commands, and
// resynchronization with the server after a page load or reconnect.
//
// All session state is owned by the event loop. Exported methods hand their
// work to the loop and may be called from any goroutine; observer callbacks
// and transport-driven updates run on the loop.
package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/liveconsole/go/internal/console/eventloop"
	"github.com/mcdev12/liveconsole/go/internal/console/leaderboard"
	"github.com/mcdev12/liveconsole/go/internal/console/sessionclock"
	"github.com/mcdev12/liveconsole/go/internal/console/transport"
	"github.com/mcdev12/liveconsole/go/internal/models"
	"github.com/rs/zerolog/log"
)

// API is the command API the session drives.
type API interface {
	ListRounds(ctx context.Context, activityID string) ([]models.Round, error)
	CurrentRound(ctx context.Context, activityID string) (*models.CurrentRound, error)
	StartRound(ctx context.Context, roundID models.ID, credential string) (*models.StartResult, error)
	StopRound(ctx context.Context, roundID models.ID) (*models.StopResult, error)
	Winners(ctx context.Context, roundID models.ID) ([]models.Winner, error)
}

// Transport is the part of the event connection the session subscribes to.
type Transport interface {
	On(event string, handler transport.Handler) *transport.Subscription
	Off(events ...string)
	IsConnected() bool
}

// Loop is the scheduling domain the session runs on.
type Loop interface {
	eventloop.Scheduler
	Post(fn func()) bool
	Do(ctx context.Context, fn func()) error
	Clock() clockwork.Clock
}

// Config holds session timing.
type Config struct {
	ActivityID           string
	PrepareDuration      time.Duration
	TickInterval         time.Duration
	HighlightWindow      time.Duration
	DefaultRoundDuration time.Duration
	CommandTimeout       time.Duration
	// AutoStop issues the stop command when the local clock expires, which
	// collects winners and the final ranking.
	AutoStop bool
}

// DefaultConfig returns the console defaults.
func DefaultConfig() Config {
	return Config{
		PrepareDuration:      5 * time.Second,
		TickInterval:         sessionclock.DefaultTickInterval,
		HighlightWindow:      leaderboard.DefaultHighlightWindow,
		DefaultRoundDuration: models.DefaultRoundDuration,
		CommandTimeout:       10 * time.Second,
		AutoStop:             true,
	}
}

// Session is the game session state machine.
type Session struct {
	loop     Loop
	api      API
	cfg      Config
	observer Observer

	ctx    context.Context
	cancel context.CancelFunc

	clock *sessionclock.Clock
	board *leaderboard.Reconciler

	// Loop-owned state.
	status        Status
	round         *models.Round
	rounds        []models.Round
	totalDuration int
	playerCount   int
	winners       []models.Winner
	celebrating   bool
	celebrated    bool
	connected     bool
	closed        bool

	preparing        bool
	prepareDeadline  time.Time
	prepareRemaining int
	prepareTimer     eventloop.Stopper
	prepareTick      eventloop.Stopper

	startInFlight   bool
	stopIssued      bool
	stopInFlight    bool
	winnersInFlight bool

	// roundSeq invalidates command results that belong to an earlier round;
	// resyncSeq keeps only the newest snapshot request.
	roundSeq  uint64
	resyncSeq uint64

	lifecycle []*transport.Subscription
	transport Transport

	view atomic.Pointer[View]
}

// New creates a session in the unselected state. A nil observer is replaced
// by NoOpObserver.
func New(loop Loop, api API, cfg Config, observer Observer) *Session {
	defaults := DefaultConfig()
	if cfg.PrepareDuration <= 0 {
		cfg.PrepareDuration = defaults.PrepareDuration
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaults.TickInterval
	}
	if cfg.HighlightWindow <= 0 {
		cfg.HighlightWindow = defaults.HighlightWindow
	}
	if cfg.DefaultRoundDuration <= 0 {
		cfg.DefaultRoundDuration = defaults.DefaultRoundDuration
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaults.CommandTimeout
	}
	if observer == nil {
		observer = NoOpObserver{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		loop:     loop,
		api:      api,
		cfg:      cfg,
		observer: observer,
		ctx:      ctx,
		cancel:   cancel,
		status:   StatusUnselected,
	}
	s.clock = sessionclock.New(loop.Clock(), loop, cfg.TickInterval, s.onClockTick, s.onClockExpire)
	s.board = leaderboard.New(loop, cfg.HighlightWindow, s.publish)

	v := s.buildView()
	s.view.Store(&v)
	return s
}

// Snapshot returns the last published view. It is safe to call from any
// goroutine.
func (s *Session) Snapshot() View {
	return *s.view.Load()
}

// Rounds returns the selectable rounds from the last published view.
func (s *Session) Rounds() []models.Round {
	return s.Snapshot().Rounds
}

// do runs fn on the loop and returns its error.
func (s *Session) do(ctx context.Context, fn func() error) error {
	var err error
	if loopErr := s.loop.Do(ctx, func() {
		if s.closed {
			err = ErrClosed
			return
		}
		err = fn()
	}); loopErr != nil {
		return loopErr
	}
	return err
}

// post queues fn on the loop unless the session has been closed.
func (s *Session) post(fn func()) {
	if !s.loop.Post(func() {
		if s.closed {
			return
		}
		fn()
	}) {
		log.Debug().Msg("event loop stopped, dropping session update")
	}
}

// call runs an API request off the loop and applies its result on the loop.
func (s *Session) call(request func(ctx context.Context) func()) {
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.cfg.CommandTimeout)
		defer cancel()
		apply := request(ctx)
		s.post(apply)
	}()
}

func (s *Session) publish() {
	v := s.buildView()
	s.view.Store(&v)
	s.observer.OnStateChange(v)
}

func (s *Session) buildView() View {
	v := View{
		ActivityID:       s.cfg.ActivityID,
		Status:           s.status,
		StatusText:       s.status.String(),
		Preparing:        s.preparing,
		PrepareRemaining: s.prepareRemaining,
		TotalDuration:    s.totalDuration,
		PlayerCount:      s.playerCount,
		Ranking:          s.board.Entries(),
		Celebrating:      s.celebrating,
		Connected:        s.connected,
	}
	if s.round != nil {
		r := *s.round
		v.Round = &r
	}
	if s.status == StatusRunning {
		v.EndTime = s.clock.EndTime().UnixMilli()
		v.Remaining = s.clock.Remaining()
	}
	if len(s.winners) > 0 {
		v.Winners = append([]models.Winner(nil), s.winners...)
	}
	for _, r := range s.rounds {
		if r.Selectable() {
			v.Rounds = append(v.Rounds, r)
		}
	}
	return v
}
