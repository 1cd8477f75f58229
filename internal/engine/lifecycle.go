package engine

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/avbelov/squadduel/internal/events"
	"github.com/avbelov/squadduel/internal/match"
	"github.com/avbelov/squadduel/internal/models"
)

// startMatch creates and registers a session, pulls its players out of the
// lobby and kicks off the first round. Carried spectators come from a
// rematch; they are already liveness-filtered by the caller.
func (e *Engine) startMatch(mode models.MatchMode, participants []models.Participant, settings models.MatchSettings, spectators map[string]string) uuid.UUID {
	mc := match.NewMachine(e.cat, e.eval, e.rng, mode, participants, settings)
	if spectators == nil {
		spectators = make(map[string]string)
	}
	s := &session{
		machine:    mc,
		spectators: spectators,
		skipVotes:  make(map[int]bool),
	}
	matchID := mc.M.ID
	e.live[matchID] = s

	for _, p := range participants {
		delete(e.idle, p.ConnID)
		e.byConn[p.ConnID] = matchID
	}
	for connID := range spectators {
		delete(e.idle, connID)
		e.byConn[connID] = matchID
	}

	e.publish(events.New(events.TypeMatchStarted, matchID.String(), s.recipients(), events.MatchStartedPayload{
		MatchID:      matchID.String(),
		Mode:         mode,
		Participants: e.matchParticipants(mc.M),
		Settings:     settings,
	}))
	e.publishLobbyStats()
	e.publishOffers()

	log.Info().
		Str("match_id", matchID.String()).
		Str("mode", string(mode)).
		Int("rounds", settings.Rounds).
		Msg("match started")

	e.beginRound(s)
	return matchID
}

// matchParticipants renders the participant list with their public ratings.
func (e *Engine) matchParticipants(m *models.Match) []events.MatchParticipant {
	out := make([]events.MatchParticipant, 0, len(m.Participants))
	for _, p := range m.Participants {
		mp := events.MatchParticipant{Nickname: p.Nickname}
		if m.Competitive() {
			rating, err := e.users.RatingOf(e.ctx, p.Nickname)
			if err != nil {
				log.Warn().Err(err).Str("nickname", p.Nickname).Msg("load rating")
			}
			mp.Rating = rating
		}
		out = append(out, mp)
	}
	return out
}

// beginRound opens the next round and arms the opener's clock.
func (e *Engine) beginRound(s *session) {
	s.machine.BeginRound()
	m := s.machine.M
	e.armTurn(s)

	e.publish(events.New(events.TypeRoundStarted, m.ID.String(), s.recipients(), events.RoundStartedPayload{
		RoundIndex:  m.RoundIndex,
		TotalRounds: m.Settings.Rounds,
		Category:    m.Category,
		ItemCount:   len(m.RoundItems),
		TurnOwner:   m.TurnOwner,
		Scores:      append([]float64(nil), m.Scores...),
		BudgetsSec:  budgetsSec(m),
		DeadlineAt:  s.turnDeadline,
	}))
}

// armTurn mints a fresh clock token for the current turn owner and schedules
// expiry at their remaining budget. Whatever the old clock does afterwards,
// its token no longer matches.
func (e *Engine) armTurn(s *session) {
	m := s.machine.M
	budget := m.TimeBudgets[m.TurnOwner]

	s.stopTurnTimer()
	token := e.nextToken()
	s.turnToken = token
	s.turnStartedAt = e.clock.Now()
	s.turnDeadline = s.turnStartedAt.Add(budget)

	matchID := m.ID
	s.turnTimer = e.clock.AfterFunc(budget, func() {
		e.onTurnClockFired(matchID, token)
	})
}

// onTurnClockFired handles a turn clock expiring. A token mismatch means the
// turn already moved on and the fire is dropped.
func (e *Engine) onTurnClockFired(matchID uuid.UUID, token uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.live[matchID]
	if !ok || s.turnToken != token {
		log.Debug().Str("match_id", matchID.String()).Uint64("token", token).Msg("stale turn clock ignored")
		return
	}
	s.turnTimer = nil
	s.turnToken = 0

	m := s.machine.M
	loser := m.TurnOwner
	s.machine.ResolveExpiry(models.RoundEndTimeout)
	e.publish(events.New(events.TypeTurnExpired, m.ID.String(), s.recipients(), events.TurnUpdatedPayload{
		TurnOwner:      loser,
		BudgetsSec:     budgetsSec(m),
		NamedCount:     len(m.Named),
		RemainingCount: len(m.RoundItems) - len(m.Named),
	}))
	e.settleRound(s)
}

// onPauseClockFired advances the match when the between-rounds pause runs
// out, unless the pause was already skipped or the match is gone.
func (e *Engine) onPauseClockFired(matchID uuid.UUID, token uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.live[matchID]
	if !ok || s.pauseToken != token {
		log.Debug().Str("match_id", matchID.String()).Uint64("token", token).Msg("stale pause clock ignored")
		return
	}
	s.pauseTimer = nil
	s.pauseToken = 0
	e.advanceRound(s)
}

// settleRound publishes the round outcome the machine just recorded and arms
// the between-rounds pause. The pause runs after every settle, the last one
// included; whether the match is over is decided when the pause ends.
func (e *Engine) settleRound(s *session) {
	m := s.machine.M
	rec := m.History[len(m.History)-1]

	remaining := make([]string, 0)
	for _, it := range m.Remaining() {
		remaining = append(remaining, it.DisplayName)
	}

	e.publish(events.New(events.TypeRoundSettled, m.ID.String(), s.recipients(), events.RoundSettledPayload{
		RoundIndex:   m.RoundIndex,
		EndReason:    rec.EndReason,
		EndedBy:      rec.EndedBy,
		Winner:       rec.Winner,
		Scores:       append([]float64(nil), m.Scores...),
		Remaining:    remaining,
		NextRoundSec: e.cfg.RoundPause.Seconds(),
	}))

	s.stopPauseTimer()
	token := e.nextToken()
	s.pauseToken = token
	s.skipVotes = make(map[int]bool)
	matchID := m.ID
	s.pauseTimer = e.clock.AfterFunc(e.cfg.RoundPause, func() {
		e.onPauseClockFired(matchID, token)
	})
}

// advanceRound runs when the pause ends, however it ended: the match finishes
// if its termination predicate holds, otherwise the next round opens.
func (e *Engine) advanceRound(s *session) {
	if reason, over := s.machine.GameOver(); over {
		e.finishMatch(s, reason)
		return
	}
	e.beginRound(s)
}

// finishMatch terminates a session: rates it when it earned a rated result,
// tells the room, offers a rematch where it applies and returns everyone
// still connected to the idle pool.
func (e *Engine) finishMatch(s *session, reason models.TerminationReason) {
	s.stopTurnTimer()
	s.stopPauseTimer()
	s.machine.Terminate(reason)
	m := s.machine.M
	matchID := m.ID

	rated := m.Competitive() &&
		(reason == models.TerminationCompleted || reason == models.TerminationScoreUnreachable)

	var changes *models.RatingChanges
	if rated {
		var err error
		changes, err = e.users.RecordResult(e.ctx, m.Participants[0].Nickname, m.Participants[1].Nickname, m.OutcomeForP0())
		if err != nil {
			log.Error().Err(err).Str("match_id", matchID.String()).Msg("record rated result")
			changes = nil
		}
	}

	e.publish(events.New(events.TypeMatchEnded, matchID.String(), s.recipients(), events.MatchEndedPayload{
		MatchID:       matchID.String(),
		Reason:        reason,
		Scores:        append([]float64(nil), m.Scores...),
		History:       append([]models.RoundRecord(nil), m.History...),
		RatingChanges: changes,
	}))

	if rated {
		e.rematch[matchID] = &rematchState{
			participants: [2]models.Participant{m.Participants[0], m.Participants[1]},
			settings:     m.Settings,
			spectators:   s.spectators,
		}
	}

	returned := make([]string, 0, len(m.Participants)+len(s.spectators))
	for _, p := range m.Participants {
		delete(e.byConn, p.ConnID)
		if e.presence.Connected(p.ConnID) {
			e.idle[p.ConnID] = p.Nickname
			returned = append(returned, p.ConnID)
		}
	}
	for connID, nickname := range s.spectators {
		delete(e.byConn, connID)
		if e.presence.Connected(connID) {
			e.idle[connID] = nickname
			returned = append(returned, connID)
		}
	}
	delete(e.live, matchID)

	log.Info().
		Str("match_id", matchID.String()).
		Str("reason", string(reason)).
		Floats64("scores", m.Scores).
		Msg("match ended")

	e.publishLobbyStats()
	if len(returned) > 0 {
		e.publish(events.New(events.TypeOfferListUpdated, events.LobbySubject, returned, e.offersPayload()))
	}
	if rated {
		e.publishLeaderboardTo(nil)
	}
}

// snapshotPayload renders the full state of a live match for a late joiner.
func (e *Engine) snapshotPayload(s *session) events.MatchSnapshotPayload {
	m := s.machine.M
	p := events.MatchSnapshotPayload{
		MatchID:        m.ID.String(),
		Mode:           m.Mode,
		Status:         m.Status,
		Participants:   e.matchParticipants(m),
		Settings:       m.Settings,
		RoundIndex:     m.RoundIndex,
		Category:       m.Category,
		Scores:         append([]float64(nil), m.Scores...),
		Named:          append([]models.NamedItem(nil), m.Named...),
		TurnOwner:      m.TurnOwner,
		BudgetsSec:     budgetsSec(m),
		SpectatorCount: len(s.spectators),
	}
	if m.Status == models.MatchStatusRoundInProgress {
		p.DeadlineAt = s.turnDeadline
	}
	return p
}

func budgetsSec(m *models.Match) []float64 {
	out := make([]float64, len(m.TimeBudgets))
	for i, d := range m.TimeBudgets {
		out[i] = d.Seconds()
	}
	return out
}
