package engine

import (
	"github.com/rs/zerolog/log"

	"github.com/avbelov/squadduel/internal/events"
	"github.com/avbelov/squadduel/internal/models"
)

// Disconnect purges a dropped connection from every corner of the engine.
// A live opponent wins by walkover without a rating change; everything else
// is quiet cleanup.
func (e *Engine) Disconnect(connID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.collapseRematch(connID)
	for _, st := range e.rematch {
		delete(st.spectators, connID)
	}

	delete(e.idle, connID)
	if _, ok := e.takeOwnOffer(connID); ok {
		e.publishOffers()
	}

	if matchID, ok := e.byConn[connID]; ok {
		delete(e.byConn, connID)
		if s, live := e.live[matchID]; live {
			if s.participantIndex(connID) >= 0 {
				log.Info().
					Str("match_id", matchID.String()).
					Str("conn_id", connID).
					Msg("participant disconnected, terminating match")
				e.finishMatch(s, models.TerminationDisconnect)
			} else {
				delete(s.spectators, connID)
				e.publish(events.New(events.TypeSpectatorsChanged, matchID.String(), s.recipients(), s.spectatorsPayload()))
			}
		}
	}

	e.publishLobbyStats()
}
