package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/liveconsole/go/internal/console/events"
	"github.com/mcdev12/liveconsole/go/internal/console/transport"
	"github.com/mcdev12/liveconsole/go/internal/models"
	"github.com/rs/zerolog/log"
)

var errReconnectFailed = errors.New("event server unreachable")

// Init loads the round list and adopts the server's current session. It is
// the page-load path; a running round is resynchronized without preparation.
func (s *Session) Init(ctx context.Context) error {
	rounds, err := s.api.ListRounds(ctx, s.cfg.ActivityID)
	if err != nil {
		return fmt.Errorf("load rounds: %w", err)
	}

	var seq uint64
	if err := s.do(ctx, func() error {
		s.rounds = rounds
		s.resyncSeq++
		seq = s.resyncSeq
		s.publish()
		return nil
	}); err != nil {
		return err
	}

	current, err := s.api.CurrentRound(ctx, s.cfg.ActivityID)
	if err != nil {
		return fmt.Errorf("load current round: %w", err)
	}
	return s.do(ctx, func() error {
		s.applyCurrent(seq, current)
		return nil
	})
}

// Attach subscribes the session to tr. On every open the session event
// handlers are cleared and registered again, then the session resyncs.
func (s *Session) Attach(tr Transport) {
	s.lifecycle = append(s.lifecycle,
		tr.On(events.Open, func(transport.Event) { s.onOpen(tr) }),
		tr.On(events.Close, func(transport.Event) { s.post(func() { s.setConnected(false) }) }),
		tr.On(events.ReconnectFailed, func(ev transport.Event) {
			err := errReconnectFailed
			if ev.Err != nil {
				err = fmt.Errorf("%w: %v", errReconnectFailed, ev.Err)
			}
			s.post(func() {
				s.setConnected(false)
				s.observer.OnConnectionLost(err)
			})
		}),
	)
	s.transport = tr

	if tr.IsConnected() {
		s.onOpen(tr)
	}
}

// onOpen runs on the transport goroutine.
func (s *Session) onOpen(tr Transport) {
	tr.Off(events.SessionEvents...)
	tr.On(events.RankingUpdate, s.handleRankingUpdate)
	tr.On(events.GameStart, s.handleGameStart)
	tr.On(events.GameStop, s.handleGameStop)

	s.post(func() {
		s.setConnected(true)
		s.resync()
	})
}

func (s *Session) detach() {
	for _, sub := range s.lifecycle {
		sub.Cancel()
	}
	s.lifecycle = nil
	if s.transport != nil {
		s.transport.Off(events.SessionEvents...)
		s.transport = nil
	}
}

func (s *Session) setConnected(connected bool) {
	if s.connected == connected {
		return
	}
	s.connected = connected
	s.publish()
}

func (s *Session) handleRankingUpdate(ev transport.Event) {
	var p events.RankingUpdatePayload
	if err := ev.Decode(&p); err != nil {
		log.Warn().Err(err).Msg("ignoring ranking_update")
		return
	}
	s.post(func() {
		if p.PlayerCount != nil {
			s.playerCount = *p.PlayerCount
		}
		if p.Ranking != nil {
			s.board.Reconcile(p.Ranking)
		}
		s.publish()
	})
}

func (s *Session) handleGameStart(ev transport.Event) {
	var p events.GameStartPayload
	if err := ev.Decode(&p); err != nil {
		log.Warn().Err(err).Msg("ignoring game_start")
		return
	}
	s.post(func() {
		switch s.status {
		case StatusUnselected, StatusFinished:
			// Started elsewhere; learn which round from the server.
			if s.status == StatusUnselected {
				s.resync()
			}
			return
		case StatusReady:
			if p.EndTime == 0 {
				s.resync()
				return
			}
			duration := 0
			if p.Duration != nil {
				duration = *p.Duration
			}
			s.enterRunning(models.EpochMillis(p.EndTime), duration)
		case StatusRunning:
			if p.EndTime > 0 {
				s.clock.Arm(models.EpochMillis(p.EndTime))
			}
		}
		s.publish()
	})
}

func (s *Session) handleGameStop(ev transport.Event) {
	var p events.GameStopPayload
	if err := ev.Decode(&p); err != nil {
		// A trigger-only stop still ends the round.
		log.Warn().Err(err).Msg("game_stop payload unreadable")
	}
	s.post(func() {
		s.finish("stop broadcast")
		if s.status != StatusFinished {
			return
		}
		if len(p.Winners) > 0 || p.Ranking != nil {
			s.applyFinal(p.Winners, p.Ranking)
		} else if !s.stopIssued {
			// Not our stop: nobody will hand us the winners.
			s.fetchWinners()
		}
		s.publish()
	})
}

// resync fetches the current snapshot. Only the newest request is applied.
func (s *Session) resync() {
	s.resyncSeq++
	seq := s.resyncSeq
	activityID := s.cfg.ActivityID

	s.call(func(ctx context.Context) func() {
		current, err := s.api.CurrentRound(ctx, activityID)
		return func() {
			if err != nil {
				log.Warn().Err(err).Str("activity_id", activityID).Msg("resync failed")
				return
			}
			s.applyCurrent(seq, current)
		}
	})
}

func (s *Session) applyCurrent(seq uint64, cur *models.CurrentRound) {
	if seq != s.resyncSeq || cur == nil {
		return
	}
	if cur.PlayerCount != nil {
		s.playerCount = *cur.PlayerCount
	}

	switch cur.Status {
	case models.RoundStatusRunning:
		s.adoptRunning(cur)
	case models.RoundStatusReady:
		if s.status == StatusUnselected && cur.Round != nil {
			s.enterReady(s.knownRound(*cur.Round))
		}
	case models.RoundStatusFinished:
		if s.status == StatusRunning {
			s.finish("server reports finished")
			if cur.Ranking != nil {
				s.board.Reconcile(cur.Ranking)
			}
			if !s.stopIssued {
				s.fetchWinners()
			}
		} else if s.status == StatusUnselected && cur.Round != nil {
			s.enterReady(s.knownRound(*cur.Round))
			s.status = StatusFinished
			// Results of a round that ended before we attached are shown,
			// not celebrated.
			s.celebrated = true
			if cur.Ranking != nil {
				s.board.Seed(cur.Ranking)
			}
		}
	}
	s.publish()
}

func (s *Session) adoptRunning(cur *models.CurrentRound) {
	now := s.loop.Clock().Now()
	endTime := models.EpochMillis(cur.EndTime)
	if endTime.IsZero() {
		endTime = now.Add(time.Duration(cur.Remaining) * time.Second)
	}

	sameRound := s.status == StatusRunning &&
		(cur.Round == nil || (s.round != nil && s.round.ID == cur.Round.ID))
	if sameRound {
		// Correction only: keep ranking deltas and celebration state.
		if cur.Ranking != nil {
			s.board.Reconcile(cur.Ranking)
		}
		s.clock.Arm(endTime)
		return
	}

	if cur.Round != nil {
		s.enterReady(s.knownRound(*cur.Round))
	} else if s.round == nil {
		log.Warn().Msg("server reports a running round without round details")
		return
	}
	if cur.Ranking != nil {
		s.board.Seed(cur.Ranking)
	}

	log.Info().
		Str("round_id", s.roundID()).
		Int("remaining", int(endTime.Sub(now)/time.Second)).
		Msg("resynchronized with running round")

	duration := 0
	if cur.Round != nil {
		duration = cur.Round.Duration
	}
	s.enterRunning(endTime, duration)
}

// knownRound prefers the round list entry, which carries the name and
// duration, over the sparse snapshot copy.
func (s *Session) knownRound(r models.Round) *models.Round {
	for i := range s.rounds {
		if s.rounds[i].ID == r.ID {
			known := s.rounds[i]
			if r.Duration > 0 {
				known.Duration = r.Duration
			}
			return &known
		}
	}
	return &r
}
