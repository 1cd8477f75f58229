package engine

import (
	"github.com/rs/zerolog/log"

	"github.com/avbelov/squadduel/internal/events"
	"github.com/avbelov/squadduel/internal/guess"
	"github.com/avbelov/squadduel/internal/match"
	"github.com/avbelov/squadduel/internal/models"
)

// SubmitGuess processes one guess from a participant. Only the turn owner may
// guess; anything else is rejected without touching the clock. A miss keeps
// the clock running, a hit passes the turn, and a hit that lands after the
// thinking budget ran dry counts as a timeout.
func (e *Engine) SubmitGuess(connID, text string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, idx, res := e.actingParticipant(connID)
	if !res.OK {
		return res
	}
	m := s.machine.M
	if m.Status != models.MatchStatusRoundInProgress {
		return Rejected(ReasonNotPlaying)
	}
	if m.TurnOwner != idx {
		log.Debug().Str("conn_id", connID).Str("match_id", m.ID.String()).Msg("guess out of turn")
		return Rejected(ReasonOutOfTurn)
	}

	elapsed := e.clock.Now().Sub(s.turnStartedAt)
	verdict := s.machine.Evaluate(text)

	if !verdict.Accepted() {
		payload := events.GuessResultPayload{Text: text, Verdict: "not_found"}
		if verdict.Kind == guess.AlreadyNamed {
			payload.Verdict = "already_named"
			payload.Display = verdict.Item.DisplayName
		}
		e.publish(events.New(events.TypeGuessResult, m.ID.String(), []string{connID}, payload))
		return Ok()
	}

	outcome := s.machine.ApplyGuess(verdict.Item, idx, elapsed)

	e.publish(events.New(events.TypeGuessResult, m.ID.String(), []string{connID}, events.GuessResultPayload{
		Text:    text,
		Verdict: "accepted",
		Display: verdict.Item.DisplayName,
		Fuzzy:   verdict.Kind == guess.Fuzzy,
	}))

	switch outcome {
	case match.GuessBudgetExhausted:
		s.stopTurnTimer()
		s.machine.ResolveExpiry(models.RoundEndTimeout)
		e.publish(events.New(events.TypeTurnExpired, m.ID.String(), s.recipients(), events.TurnUpdatedPayload{
			TurnOwner:      idx,
			BudgetsSec:     budgetsSec(m),
			NamedCount:     len(m.Named),
			RemainingCount: len(m.RoundItems) - len(m.Named),
		}))
		e.settleRound(s)

	case match.GuessRoundComplete:
		s.stopTurnTimer()
		e.settleRound(s)

	default:
		e.armTurn(s)
		e.publish(events.New(events.TypeTurnUpdated, m.ID.String(), s.recipients(), events.TurnUpdatedPayload{
			TurnOwner:      m.TurnOwner,
			DeadlineAt:     s.turnDeadline,
			BudgetsSec:     budgetsSec(m),
			Named:          m.Named[len(m.Named)-1],
			NamedCount:     len(m.Named),
			RemainingCount: len(m.RoundItems) - len(m.Named),
		}))
	}
	return Ok()
}

// Surrender concedes the current round. Only the player on the clock may
// concede; their opponent takes the point.
func (e *Engine) Surrender(connID string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, idx, res := e.actingParticipant(connID)
	if !res.OK {
		return res
	}
	m := s.machine.M
	if m.Status != models.MatchStatusRoundInProgress {
		return Rejected(ReasonNotPlaying)
	}
	if m.TurnOwner != idx {
		return Rejected(ReasonOutOfTurn)
	}

	s.stopTurnTimer()
	s.machine.ResolveExpiry(models.RoundEndSurrender)
	e.settleRound(s)
	return Ok()
}

// SkipPause registers a vote to cut the between-rounds pause short. A solo
// player skips alone; a duel needs both sides.
func (e *Engine) SkipPause(connID string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, idx, res := e.actingParticipant(connID)
	if !res.OK {
		return res
	}
	m := s.machine.M
	if m.Status != models.MatchStatusRoundSettling || s.pauseToken == 0 {
		return Rejected(ReasonNotPaused)
	}

	s.skipVotes[idx] = true
	needed := s.skipVotesNeeded()
	e.publish(events.New(events.TypeSkipVoteUpdate, m.ID.String(), s.recipients(), events.SkipVoteUpdatePayload{
		Votes:  len(s.skipVotes),
		Needed: needed,
	}))

	if len(s.skipVotes) >= needed {
		s.stopPauseTimer()
		e.advanceRound(s)
	}
	return Ok()
}

// actingParticipant resolves a connection to its live match and player slot.
func (e *Engine) actingParticipant(connID string) (*session, int, Result) {
	matchID, ok := e.byConn[connID]
	if !ok {
		return nil, -1, Rejected(ReasonNotInMatch)
	}
	s, ok := e.live[matchID]
	if !ok {
		return nil, -1, Rejected(ReasonNotInMatch)
	}
	idx := s.participantIndex(connID)
	if idx < 0 {
		return nil, -1, Rejected(ReasonNotInMatch)
	}
	return s, idx, Ok()
}
