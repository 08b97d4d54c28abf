package session

import (
	"context"
	"fmt"
	"time"

	"github.com/mcdev12/liveconsole/go/internal/console/sessionclock"
	"github.com/mcdev12/liveconsole/go/internal/models"
	"github.com/rs/zerolog/log"
)

// SelectRound makes roundID the active round. It is allowed while no round
// is selected, or while a selected round has not started preparing.
func (s *Session) SelectRound(ctx context.Context, roundID models.ID) error {
	return s.do(ctx, func() error {
		switch {
		case s.status == StatusUnselected:
		case s.status == StatusReady && !s.preparing && !s.startInFlight:
		default:
			return fmt.Errorf("select round in status %s: %w", s.status, ErrInvalidTransition)
		}

		var round *models.Round
		for i := range s.rounds {
			if s.rounds[i].ID == roundID && s.rounds[i].Selectable() {
				r := s.rounds[i]
				round = &r
				break
			}
		}
		if round == nil {
			return fmt.Errorf("select round %s: %w", roundID, ErrRoundNotFound)
		}

		s.enterReady(round)
		log.Info().
			Str("activity_id", s.cfg.ActivityID).
			Str("round_id", round.ID.String()).
			Int("duration", s.totalDuration).
			Msg("round selected")
		s.publish()
		return nil
	})
}

// Start begins the preparation countdown; when it completes the start
// command is issued with credential. The outcome is reported to the
// observer: a rejection returns the session to ready.
func (s *Session) Start(ctx context.Context, credential string) error {
	return s.do(ctx, func() error {
		if credential == "" {
			return ErrCredentialRequired
		}
		if s.status != StatusReady || s.round == nil {
			return fmt.Errorf("start in status %s: %w", s.status, ErrInvalidTransition)
		}
		if s.preparing || s.startInFlight {
			// Already on its way.
			return nil
		}
		s.beginPrepare(credential)
		return nil
	})
}

// Stop issues the stop command for the running round. Repeated calls while a
// stop is outstanding or done are no-ops.
func (s *Session) Stop(ctx context.Context) error {
	return s.do(ctx, func() error {
		if s.stopIssued {
			return nil
		}
		// A round finished by the local clock can still be stopped to
		// collect winners when auto-stop is off.
		if s.status != StatusRunning && s.status != StatusFinished {
			return ErrNotRunning
		}
		if s.status == StatusFinished && s.celebrated {
			return nil
		}
		s.requestStop()
		return nil
	})
}

// NextRound clears the finished round and reloads the round list.
func (s *Session) NextRound(ctx context.Context) error {
	return s.do(ctx, func() error {
		if s.status != StatusFinished {
			return fmt.Errorf("next round in status %s: %w", s.status, ErrInvalidTransition)
		}
		s.resetRound()
		log.Info().Str("activity_id", s.cfg.ActivityID).Msg("ready for next round")
		s.publish()
		s.reloadRounds()
		return nil
	})
}

// Resume recomputes countdowns after the host was suspended.
func (s *Session) Resume() {
	s.post(func() {
		if s.preparing {
			s.prepareRemaining = sessionclock.Remaining(s.prepareDeadline, s.loop.Clock().Now())
		}
		s.clock.Resume()
		s.publish()
	})
}

// DismissCelebration hides the winner celebration. The winners stay in the
// view.
func (s *Session) DismissCelebration() {
	s.post(func() {
		if !s.celebrating {
			return
		}
		s.celebrating = false
		s.publish()
	})
}

// Close cancels every timer, subscription and outstanding request. It is safe
// to call more than once.
func (s *Session) Close(ctx context.Context) error {
	err := s.loop.Do(ctx, func() {
		if s.closed {
			return
		}
		s.closed = true
		s.cancelPrepare()
		s.clock.Reset()
		s.board.Reset()
		s.detach()
	})
	s.cancel()
	return err
}

func (s *Session) enterReady(round *models.Round) {
	s.roundSeq++
	s.cancelPrepare()
	s.clock.Reset()
	s.startInFlight = false
	s.round = round
	s.status = StatusReady
	s.totalDuration = int(round.DurationOr(s.cfg.DefaultRoundDuration) / time.Second)
	s.winners = nil
	s.celebrating = false
	s.celebrated = false
	s.stopIssued = false
	s.stopInFlight = false
	s.board.Reset()
}

func (s *Session) beginPrepare(credential string) {
	now := s.loop.Clock().Now()
	s.preparing = true
	s.prepareDeadline = now.Add(s.cfg.PrepareDuration)
	s.prepareRemaining = sessionclock.Remaining(s.prepareDeadline, now)

	seq := s.roundSeq
	s.prepareTick = s.loop.Every(time.Second, func() {
		s.prepareRemaining = sessionclock.Remaining(s.prepareDeadline, s.loop.Clock().Now())
		s.publish()
	})
	s.prepareTimer = s.loop.AfterFunc(s.cfg.PrepareDuration, func() {
		s.prepareTimer = nil
		s.issueStart(seq, credential)
	})

	log.Info().
		Str("round_id", s.round.ID.String()).
		Dur("countdown", s.cfg.PrepareDuration).
		Msg("preparing round start")
	s.publish()
}

func (s *Session) cancelPrepare() {
	if s.prepareTimer != nil {
		s.prepareTimer.Stop()
		s.prepareTimer = nil
	}
	if s.prepareTick != nil {
		s.prepareTick.Stop()
		s.prepareTick = nil
	}
	s.preparing = false
	s.prepareRemaining = 0
}

func (s *Session) issueStart(seq uint64, credential string) {
	if seq != s.roundSeq || s.status != StatusReady || s.round == nil {
		s.cancelPrepare()
		return
	}
	if s.prepareTick != nil {
		s.prepareTick.Stop()
		s.prepareTick = nil
	}
	s.prepareRemaining = 0
	s.startInFlight = true
	roundID := s.round.ID
	s.publish()

	log.Info().Str("round_id", roundID.String()).Msg("issuing start command")
	s.call(func(ctx context.Context) func() {
		res, err := s.api.StartRound(ctx, roundID, credential)
		return func() { s.onStartResult(seq, res, err) }
	})
}

func (s *Session) onStartResult(seq uint64, res *models.StartResult, err error) {
	if seq != s.roundSeq {
		return
	}
	s.startInFlight = false
	s.cancelPrepare()

	if err != nil {
		log.Warn().Err(err).Str("round_id", s.roundID()).Msg("start command rejected")
		s.observer.OnError(fmt.Errorf("start round: %w", err))
		s.publish()
		return
	}

	switch s.status {
	case StatusReady:
		s.enterRunning(s.startEndTime(res), res.Duration)
	case StatusRunning:
		// The game_start broadcast won the race; the ack carries the same
		// authoritative end time.
		if res != nil && res.EndTime > 0 {
			s.clock.Arm(models.EpochMillis(res.EndTime))
		}
	}
	s.publish()
}

func (s *Session) startEndTime(res *models.StartResult) time.Time {
	if res != nil && res.EndTime > 0 {
		return models.EpochMillis(res.EndTime)
	}
	seconds := s.totalDuration
	if res != nil && res.Duration > 0 {
		seconds = res.Duration
	}
	return s.loop.Clock().Now().Add(time.Duration(seconds) * time.Second)
}

// enterRunning moves ready to running and arms the clock. Arming may expire
// at once when the end time is already past.
func (s *Session) enterRunning(endTime time.Time, duration int) {
	s.cancelPrepare()
	s.status = StatusRunning
	if duration > 0 {
		s.totalDuration = duration
	}
	s.winners = nil
	s.celebrating = false
	s.celebrated = false
	s.stopIssued = false
	s.stopInFlight = false

	log.Info().
		Str("round_id", s.roundID()).
		Time("end_time", endTime).
		Int("duration", s.totalDuration).
		Msg("round running")
	s.clock.Arm(endTime)
}

// finish moves running to finished. It reports whether this call made the
// transition; repeated calls are no-ops.
func (s *Session) finish(reason string) bool {
	if s.status != StatusRunning {
		return false
	}
	s.status = StatusFinished
	s.clock.Reset()
	s.cancelPrepare()

	log.Info().
		Str("round_id", s.roundID()).
		Str("reason", reason).
		Msg("round finished")
	return true
}

// applyFinal merges the final ranking and celebrates winners at most once per
// round.
func (s *Session) applyFinal(winners []models.Winner, ranking []models.RankingEntry) {
	if ranking != nil {
		s.board.Reconcile(ranking)
	}
	if len(winners) == 0 || s.celebrated {
		return
	}
	s.winners = append([]models.Winner(nil), winners...)
	s.celebrated = true
	s.celebrating = true
	log.Info().Str("round_id", s.roundID()).Int("winners", len(winners)).Msg("celebrating winners")
	s.observer.OnCelebrate(append([]models.Winner(nil), s.winners...))
}

func (s *Session) requestStop() {
	if s.stopIssued || s.round == nil {
		return
	}
	s.stopIssued = true
	s.stopInFlight = true
	seq := s.roundSeq
	roundID := s.round.ID

	log.Info().Str("round_id", roundID.String()).Msg("issuing stop command")
	s.call(func(ctx context.Context) func() {
		res, err := s.api.StopRound(ctx, roundID)
		return func() { s.onStopResult(seq, res, err) }
	})
}

func (s *Session) onStopResult(seq uint64, res *models.StopResult, err error) {
	if seq != s.roundSeq {
		return
	}
	s.stopInFlight = false

	if err != nil {
		log.Warn().Err(err).Str("round_id", s.roundID()).Msg("stop command rejected")
		// The presenter may retry, including after the local clock has
		// already finished the round.
		s.stopIssued = false
		s.observer.OnError(fmt.Errorf("stop round: %w", err))
		s.publish()
		return
	}

	s.finish("stop acknowledged")
	if res != nil {
		s.applyFinal(res.Winners, res.Ranking)
	}
	s.publish()
}

func (s *Session) fetchWinners() {
	if s.winnersInFlight || s.celebrated || s.round == nil {
		return
	}
	s.winnersInFlight = true
	seq := s.roundSeq
	roundID := s.round.ID

	s.call(func(ctx context.Context) func() {
		winners, err := s.api.Winners(ctx, roundID)
		return func() {
			s.winnersInFlight = false
			if seq != s.roundSeq || s.status != StatusFinished {
				return
			}
			if err != nil {
				log.Warn().Err(err).Str("round_id", roundID.String()).Msg("failed to fetch winners")
				s.observer.OnError(fmt.Errorf("fetch winners: %w", err))
				return
			}
			s.applyFinal(winners, nil)
			s.publish()
		}
	})
}

func (s *Session) onClockTick(int) {
	if s.status == StatusRunning {
		s.publish()
	}
}

func (s *Session) onClockExpire() {
	if !s.finish("clock expired") {
		return
	}
	if s.cfg.AutoStop {
		s.requestStop()
	}
	s.publish()
}

func (s *Session) resetRound() {
	s.roundSeq++
	s.cancelPrepare()
	s.clock.Reset()
	s.board.Reset()
	s.status = StatusUnselected
	s.round = nil
	s.totalDuration = 0
	s.playerCount = 0
	s.winners = nil
	s.celebrating = false
	s.celebrated = false
	s.startInFlight = false
	s.stopIssued = false
	s.stopInFlight = false
	s.winnersInFlight = false
}

func (s *Session) reloadRounds() {
	activityID := s.cfg.ActivityID
	s.call(func(ctx context.Context) func() {
		rounds, err := s.api.ListRounds(ctx, activityID)
		return func() {
			if err != nil {
				log.Warn().Err(err).Str("activity_id", activityID).Msg("failed to reload rounds")
				s.observer.OnError(fmt.Errorf("load rounds: %w", err))
				return
			}
			s.rounds = rounds
			s.publish()
		}
	})
}

func (s *Session) roundID() string {
	if s.round == nil {
		return ""
	}
	return s.round.ID.String()
}
