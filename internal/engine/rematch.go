package engine

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/avbelov/squadduel/internal/events"
	"github.com/avbelov/squadduel/internal/models"
)

// rematchState keeps a finished rated duel around so both sides can agree to
// run it back. It holds no occupancy: everyone in it is back in the lobby and
// free to do something else, which simply forfeits the rematch.
type rematchState struct {
	participants [2]models.Participant
	settings     models.MatchSettings
	votes        [2]bool
	spectators   map[string]string
}

func (st *rematchState) indexOf(connID string) int {
	for i, p := range st.participants {
		if p.ConnID == connID {
			return i
		}
	}
	return -1
}

// RequestRematch records one side's wish to replay the last duel. When both
// sides have asked and are still free, a fresh match starts with the same
// settings and seats.
func (e *Engine) RequestRematch(connID string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	matchID, st, idx := e.findRematch(connID)
	if st == nil {
		return Rejected(ReasonNoRematch)
	}

	st.votes[idx] = true
	votes := 0
	for _, v := range st.votes {
		if v {
			votes++
		}
	}
	e.publish(events.New(events.TypeRematchPending, matchID.String(), e.rematchAudience(st), events.RematchPendingPayload{
		RequestedBy: st.participants[idx].Nickname,
		Votes:       votes,
	}))
	if votes < 2 {
		return Ok()
	}

	// Both agreed; make sure both seats are still actually free to play.
	for _, p := range st.participants {
		if _, isIdle := e.idle[p.ConnID]; !isIdle || !e.presence.Connected(p.ConnID) {
			delete(e.rematch, matchID)
			e.publish(events.New(events.TypeRematchDeclined, matchID.String(), e.rematchAudience(st),
				events.RematchDeclinedPayload{Nickname: p.Nickname}))
			return Rejected(ReasonOpponentLeft)
		}
	}

	carried := make(map[string]string)
	for specConn, nickname := range st.spectators {
		if _, isIdle := e.idle[specConn]; isIdle && e.presence.Connected(specConn) {
			carried[specConn] = nickname
		}
	}
	delete(e.rematch, matchID)

	newID := e.startMatch(models.ModeCompetitive, st.participants[:], st.settings, carried)
	e.publish(events.New(events.TypeRematchStarted, matchID.String(), e.rematchAudience(st),
		events.RematchStartedPayload{NewMatchID: newID.String()}))

	log.Info().
		Str("old_match_id", matchID.String()).
		Str("new_match_id", newID.String()).
		Msg("rematch started")
	return Ok()
}

// LeavePostMatch walks away from the post-match screen, forfeiting any
// pending rematch.
func (e *Engine) LeavePostMatch(connID string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.collapseRematch(connID) {
		return Ok()
	}
	for _, st := range e.rematch {
		if _, ok := st.spectators[connID]; ok {
			delete(st.spectators, connID)
			return Ok()
		}
	}
	return Rejected(ReasonNoRematch)
}

// collapseRematch tears down the rematch a participant belongs to, telling
// everyone left watching. Returns false when the connection was no rematch
// participant.
func (e *Engine) collapseRematch(connID string) bool {
	for matchID, st := range e.rematch {
		idx := st.indexOf(connID)
		if idx < 0 {
			continue
		}
		delete(e.rematch, matchID)
		e.publish(events.New(events.TypeRematchDeclined, matchID.String(), e.rematchAudience(st),
			events.RematchDeclinedPayload{Nickname: st.participants[idx].Nickname}))
		return true
	}
	return false
}

func (e *Engine) findRematch(connID string) (uuid.UUID, *rematchState, int) {
	for matchID, st := range e.rematch {
		if idx := st.indexOf(connID); idx >= 0 {
			return matchID, st, idx
		}
	}
	return uuid.Nil, nil, -1
}

// rematchAudience is everyone from the finished match still connected.
func (e *Engine) rematchAudience(st *rematchState) []string {
	out := make([]string, 0, 2+len(st.spectators))
	for _, p := range st.participants {
		if e.presence.Connected(p.ConnID) {
			out = append(out, p.ConnID)
		}
	}
	for connID := range st.spectators {
		if e.presence.Connected(connID) {
			out = append(out, connID)
		}
	}
	return out
}
