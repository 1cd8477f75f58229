package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type identifies a kind of game event.
type Type string

const (
	TypeLobbyStats        Type = "lobby_stats_update"
	TypeOfferListUpdated  Type = "offer_list_updated"
	TypeMatchStarted      Type = "match_started"
	TypeMatchSnapshot     Type = "match_snapshot"
	TypeRoundStarted      Type = "round_started"
	TypeTurnUpdated       Type = "turn_updated"
	TypeTurnExpired       Type = "turn_expired"
	TypeGuessResult       Type = "guess_result"
	TypeRoundSettled      Type = "round_settled"
	TypeSkipVoteUpdate    Type = "skip_vote_update"
	TypeMatchEnded        Type = "match_ended"
	TypeSpectatorsChanged Type = "spectator_count_changed"
	TypeRematchPending    Type = "rematch_pending"
	TypeRematchStarted    Type = "rematch_started"
	TypeRematchDeclined   Type = "rematch_declined"
	TypeLeaderboard       Type = "leaderboard_updated"
)

// LobbySubject is the MatchID value for events addressed to the lobby
// rather than a specific match room.
const LobbySubject = "lobby"

// Envelope is the wire format every game event travels in. Recipients lists
// the connection IDs the event is for; empty means everyone in the room.
type Envelope struct {
	EventID    string          `json:"eventId"`
	Type       Type            `json:"eventType"`
	MatchID    string          `json:"matchId"`
	Recipients []string        `json:"recipients,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload"`
}

// New builds an envelope around a payload. Marshaling the payload cannot
// reasonably fail for our structs, so an error here is a programming bug and
// panics.
func New(t Type, matchID string, recipients []string, payload any) Envelope {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return Envelope{
		EventID:    uuid.NewString(),
		Type:       t,
		MatchID:    matchID,
		Recipients: recipients,
		Timestamp:  time.Now().UTC(),
		Payload:    data,
	}
}
