package events

import (
	"time"

	"github.com/avbelov/squadduel/internal/models"
)

// Event payload types shared between the engine and gateway packages.

// LobbyStatsPayload is the payload for a lobby_stats_update event. Matches
// lists the duels open to spectators; practice matches stay off the list.
type LobbyStatsPayload struct {
	OnlineCount    int         `json:"online_count"`
	IdleCount      int         `json:"idle_count"`
	OpenOffers     int         `json:"open_offers"`
	InDuelCount    int         `json:"in_duel_count"`
	PracticeCount  int         `json:"practice_count"`
	SpectatorCount int         `json:"spectator_count"`
	LiveMatches    int         `json:"live_matches"`
	Matches        []LiveMatch `json:"matches"`
}

// LiveMatch is one spectatable duel as shown in the lobby.
type LiveMatch struct {
	MatchID      string    `json:"match_id"`
	Participants []string  `json:"participants"`
	Scores       []float64 `json:"scores"`
	RoundIndex   int       `json:"round_index"`
}

// Offer describes one open challenge in the lobby.
type Offer struct {
	OfferID     string   `json:"offer_id"`
	Nickname    string   `json:"nickname"`
	Rating      int      `json:"rating"`
	League      string   `json:"league"`
	Rounds      int      `json:"rounds"`
	TimeBankSec float64  `json:"time_bank_sec"`
	Categories  []string `json:"categories,omitempty"`
}

// OfferListPayload is the payload for an offer_list_updated event.
type OfferListPayload struct {
	Offers []Offer `json:"offers"`
}

// MatchParticipant is a participant as shown to clients.
type MatchParticipant struct {
	Nickname string `json:"nickname"`
	Rating   int    `json:"rating,omitempty"`
}

// MatchStartedPayload is the payload for a match_started event.
type MatchStartedPayload struct {
	MatchID      string               `json:"match_id"`
	Mode         models.MatchMode     `json:"mode"`
	Participants []MatchParticipant   `json:"participants"`
	Settings     models.MatchSettings `json:"settings"`
}

// MatchSnapshotPayload is the payload for a match_snapshot event, sent to a
// client that joins a match already in progress.
type MatchSnapshotPayload struct {
	MatchID        string               `json:"match_id"`
	Mode           models.MatchMode     `json:"mode"`
	Status         models.MatchStatus   `json:"status"`
	Participants   []MatchParticipant   `json:"participants"`
	Settings       models.MatchSettings `json:"settings"`
	RoundIndex     int                  `json:"round_index"`
	Category       string               `json:"category,omitempty"`
	Scores         []float64            `json:"scores"`
	Named          []models.NamedItem   `json:"named,omitempty"`
	TurnOwner      int                  `json:"turn_owner"`
	DeadlineAt     time.Time            `json:"deadline_at,omitzero"`
	BudgetsSec     []float64            `json:"budgets_sec"`
	SpectatorCount int                  `json:"spectator_count"`
}

// RoundStartedPayload is the payload for a round_started event.
type RoundStartedPayload struct {
	RoundIndex  int       `json:"round_index"`
	TotalRounds int       `json:"total_rounds"`
	Category    string    `json:"category"`
	ItemCount   int       `json:"item_count"`
	TurnOwner   int       `json:"turn_owner"`
	Scores      []float64 `json:"scores"`
	BudgetsSec  []float64 `json:"budgets_sec"`
	DeadlineAt  time.Time `json:"deadline_at"`
}

// TurnUpdatedPayload is the payload for a turn_updated event, emitted after
// every accepted guess.
type TurnUpdatedPayload struct {
	TurnOwner      int              `json:"turn_owner"`
	DeadlineAt     time.Time        `json:"deadline_at"`
	BudgetsSec     []float64        `json:"budgets_sec"`
	Named          models.NamedItem `json:"named"`
	NamedCount     int              `json:"named_count"`
	RemainingCount int              `json:"remaining_count"`
}

// GuessResultPayload is the payload for a guess_result event, addressed to
// the guesser alone.
type GuessResultPayload struct {
	Text    string `json:"text"`
	Verdict string `json:"verdict"`
	Display string `json:"display,omitempty"`
	Fuzzy   bool   `json:"fuzzy,omitempty"`
}

// RoundSettledPayload is the payload for a round_settled event. Remaining
// lists the items nobody named, revealed once the round is over.
type RoundSettledPayload struct {
	RoundIndex   int                   `json:"round_index"`
	EndReason    models.RoundEndReason `json:"end_reason"`
	EndedBy      string                `json:"ended_by,omitempty"`
	Winner       models.RoundWinner    `json:"winner,omitempty"`
	Scores       []float64             `json:"scores"`
	Remaining    []string              `json:"remaining"`
	NextRoundSec float64               `json:"next_round_sec"`
}

// SkipVoteUpdatePayload is the payload for a skip_vote_update event.
type SkipVoteUpdatePayload struct {
	Votes  int `json:"votes"`
	Needed int `json:"needed"`
}

// MatchEndedPayload is the payload for a match_ended event. RatingChanges is
// null for practice matches and for matches that ended without a rated result.
type MatchEndedPayload struct {
	MatchID       string                   `json:"match_id"`
	Reason        models.TerminationReason `json:"reason"`
	Scores        []float64                `json:"scores"`
	History       []models.RoundRecord     `json:"history"`
	RatingChanges *models.RatingChanges    `json:"rating_changes"`
}

// SpectatorsChangedPayload is the payload for a spectator_count_changed event.
// Names holds at most three spectator nicknames; larger audiences show the
// count alone.
type SpectatorsChangedPayload struct {
	Count int      `json:"count"`
	Names []string `json:"names,omitempty"`
}

// RematchPendingPayload is the payload for a rematch_pending event.
type RematchPendingPayload struct {
	RequestedBy string `json:"requested_by"`
	Votes       int    `json:"votes"`
}

// RematchDeclinedPayload is the payload for a rematch_declined event, sent
// when one side leaves or disconnects before the handshake completes.
type RematchDeclinedPayload struct {
	Nickname string `json:"nickname"`
}

// RematchStartedPayload is the payload for a rematch_started event.
type RematchStartedPayload struct {
	NewMatchID string `json:"new_match_id"`
}

// LeaderboardPayload is the payload for a leaderboard_updated event.
type LeaderboardPayload struct {
	Entries []models.LeaderboardEntry `json:"entries"`
}
