package engine

import (
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/avbelov/squadduel/internal/events"
	"github.com/avbelov/squadduel/internal/match"
)

// session is one live match plus the runtime state that does not belong in
// the match model: spectators, clock tokens and skip votes.
type session struct {
	machine    *match.Machine
	spectators map[string]string // connID -> nickname

	// turnToken identifies the currently armed turn clock; a fired clock
	// carrying any other value is stale. pauseToken does the same for the
	// between-rounds pause.
	turnToken  uint64
	pauseToken uint64

	turnTimer  clockwork.Timer
	pauseTimer clockwork.Timer

	turnStartedAt time.Time
	turnDeadline  time.Time

	skipVotes map[int]bool
}

// recipients lists every connection in the match room.
func (s *session) recipients() []string {
	out := make([]string, 0, len(s.machine.M.Participants)+len(s.spectators))
	for _, p := range s.machine.M.Participants {
		out = append(out, p.ConnID)
	}
	for connID := range s.spectators {
		out = append(out, connID)
	}
	return out
}

// participantIndex returns the participant slot of a connection, or -1.
func (s *session) participantIndex(connID string) int {
	for i, p := range s.machine.M.Participants {
		if p.ConnID == connID {
			return i
		}
	}
	return -1
}

// stopTurnTimer invalidates any armed turn clock. Zeroing the token also
// neutralizes a callback that already fired and is waiting on the lock.
func (s *session) stopTurnTimer() {
	if s.turnTimer != nil {
		s.turnTimer.Stop()
		s.turnTimer = nil
	}
	s.turnToken = 0
}

// stopPauseTimer invalidates any armed pause clock.
func (s *session) stopPauseTimer() {
	if s.pauseTimer != nil {
		s.pauseTimer.Stop()
		s.pauseTimer = nil
	}
	s.pauseToken = 0
}

// spectatorsPayload reports the audience size, naming viewers only while the
// list stays small.
func (s *session) spectatorsPayload() events.SpectatorsChangedPayload {
	p := events.SpectatorsChangedPayload{Count: len(s.spectators)}
	if len(s.spectators) <= 3 {
		for _, nickname := range s.spectators {
			p.Names = append(p.Names, nickname)
		}
		sort.Strings(p.Names)
	}
	return p
}

// skipVotesNeeded is how many distinct participants must ask before the
// between-rounds pause is cut short.
func (s *session) skipVotesNeeded() int {
	return len(s.machine.M.Participants)
}
