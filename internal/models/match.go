package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchMode defines whether a match is a solo practice run or a rated duel.
type MatchMode string

const (
	ModePractice    MatchMode = "PRACTICE"
	ModeCompetitive MatchMode = "COMPETITIVE"
)

// MatchStatus defines the lifecycle state of a match.
type MatchStatus string

const (
	MatchStatusAwaitingRound   MatchStatus = "AWAITING_ROUND"
	MatchStatusRoundInProgress MatchStatus = "ROUND_IN_PROGRESS"
	MatchStatusRoundSettling   MatchStatus = "ROUND_SETTLING"
	MatchStatusOver            MatchStatus = "MATCH_OVER"
)

// TerminationReason records why a match ended.
type TerminationReason string

const (
	TerminationOngoing          TerminationReason = "ONGOING"
	TerminationCompleted        TerminationReason = "COMPLETED_ALL_ROUNDS"
	TerminationScoreUnreachable TerminationReason = "SCORE_UNREACHABLE"
	TerminationDisconnect       TerminationReason = "OPPONENT_DISCONNECTED"
	TerminationInternalError    TerminationReason = "INTERNAL_ERROR"
)

// RoundEndReason records what ended a single round.
type RoundEndReason string

const (
	RoundEndCompleted RoundEndReason = "completed"
	RoundEndTimeout   RoundEndReason = "timeout"
	RoundEndSurrender RoundEndReason = "surrender"
)

// RoundWinner identifies the decisive side of a round, if any.
type RoundWinner string

const (
	WinnerNone RoundWinner = ""
	WinnerP0   RoundWinner = "P0"
	WinnerP1   RoundWinner = "P1"
	WinnerDraw RoundWinner = "DRAW"
)

// WinnerByIndex maps a participant index to its RoundWinner value.
func WinnerByIndex(i int) RoundWinner {
	if i == 0 {
		return WinnerP0
	}
	return WinnerP1
}

// Participant is a connected human player or spectator identity.
type Participant struct {
	ConnID   string `json:"conn_id"`
	Nickname string `json:"nickname"`
}

// MatchSettings holds the validated configuration a match is created with.
type MatchSettings struct {
	League             string   `json:"league"`
	Rounds             int      `json:"rounds"`
	TimeBankSec        float64  `json:"time_bank_sec"`
	SelectedCategories []string `json:"selected_categories,omitempty"`
}

// TimeBank returns the per-round thinking budget as a duration.
func (s MatchSettings) TimeBank() time.Duration {
	return time.Duration(s.TimeBankSec * float64(time.Second))
}

// NamedItem is one successfully named item within the current round.
type NamedItem struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
	PrimaryName string `json:"primary_name"`
	By          int    `json:"by"`
}

// RoundRecord is an append-only history entry for a settled round.
type RoundRecord struct {
	Category  string         `json:"category"`
	NamedByP0 int            `json:"named_by_p0"`
	NamedByP1 int            `json:"named_by_p1"`
	EndReason RoundEndReason `json:"end_reason"`
	EndedBy   string         `json:"ended_by,omitempty"`
	Winner    RoundWinner    `json:"winner,omitempty"`
}

// Match is the state of one quiz session. It is mutated exclusively through
// the match state machine; everything else reads it.
type Match struct {
	ID           uuid.UUID
	Mode         MatchMode
	Status       MatchStatus
	Participants []Participant
	Scores       []float64
	Settings     MatchSettings

	TopicSequence []string
	RoundIndex    int // -1 before the first round
	Category      string
	RoundItems    []*Item
	Named         []NamedItem
	NamedKeys     map[string]bool

	TurnOwner   int
	TimeBudgets []time.Duration

	History     []RoundRecord
	Termination TerminationReason

	// Turn-order bookkeeping for the opener fairness rule.
	LastGuesser    int // -1 when no correct guess this round
	PrevRoundLoser int // -1 unless the previous round ended in timeout/surrender
}

// Competitive reports whether the match has two live participants.
func (m *Match) Competitive() bool {
	return m.Mode == ModeCompetitive && len(m.Participants) == 2
}

// Remaining returns the not-yet-named items of the current round.
func (m *Match) Remaining() []*Item {
	out := make([]*Item, 0, len(m.RoundItems)-len(m.Named))
	for _, it := range m.RoundItems {
		if !m.NamedKeys[it.CanonicalKey] {
			out = append(out, it)
		}
	}
	return out
}

// NamedCount returns how many items the given participant has named this round.
func (m *Match) NamedCount(idx int) int {
	n := 0
	for _, ni := range m.Named {
		if ni.By == idx {
			n++
		}
	}
	return n
}

// OutcomeForP0 derives the match outcome from participant 0's perspective:
// 1.0 win, 0.0 loss, 0.5 draw.
func (m *Match) OutcomeForP0() float64 {
	switch {
	case m.Scores[0] > m.Scores[1]:
		return 1.0
	case m.Scores[1] > m.Scores[0]:
		return 0.0
	default:
		return 0.5
	}
}
