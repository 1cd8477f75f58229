package match

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/avbelov/squadduel/internal/catalog"
	"github.com/avbelov/squadduel/internal/guess"
	"github.com/avbelov/squadduel/internal/models"
)

// Machine drives one match's rounds, turns and scoring. It owns the Match
// state; callers are expected to serialize access.
type Machine struct {
	M    *models.Match
	cat  *catalog.Catalog
	eval *guess.Evaluator
	rng  *rand.Rand
}

// NewMachine creates a match in AWAITING_ROUND state and samples its topic
// sequence from the league's categories, honoring an explicit selection when
// the settings carry one.
func NewMachine(cat *catalog.Catalog, eval *guess.Evaluator, rng *rand.Rand, mode models.MatchMode, participants []models.Participant, settings models.MatchSettings) *Machine {
	pool := settings.SelectedCategories
	if len(pool) == 0 {
		pool = cat.Categories(settings.League)
	}

	m := &models.Match{
		ID:             uuid.New(),
		Mode:           mode,
		Status:         models.MatchStatusAwaitingRound,
		Participants:   participants,
		Scores:         make([]float64, len(participants)),
		Settings:       settings,
		TopicSequence:  sampleTopics(rng, pool, settings.Rounds),
		RoundIndex:     -1,
		TurnOwner:      -1,
		TimeBudgets:    make([]time.Duration, len(participants)),
		Termination:    models.TerminationOngoing,
		LastGuesser:    -1,
		PrevRoundLoser: -1,
	}
	return &Machine{M: m, cat: cat, eval: eval, rng: rng}
}

// sampleTopics picks n distinct categories. ResolveSettings caps the round
// count at the pool size, so n never exceeds len(pool).
func sampleTopics(rng *rand.Rand, pool []string, n int) []string {
	out := make([]string, 0, n)
	for _, i := range rng.Perm(len(pool))[:n] {
		out = append(out, pool[i])
	}
	return out
}

// GameOver checks the two termination conditions before the next round would
// start: the planned rounds are exhausted, or one side's lead already exceeds
// the points still on the table. Returns the reason when the match is over.
func (mc *Machine) GameOver() (models.TerminationReason, bool) {
	m := mc.M
	next := m.RoundIndex + 1
	if next >= m.Settings.Rounds {
		return models.TerminationCompleted, true
	}
	if m.Competitive() {
		gap := m.Scores[0] - m.Scores[1]
		if gap < 0 {
			gap = -gap
		}
		if gap > float64(m.Settings.Rounds-next) {
			return models.TerminationScoreUnreachable, true
		}
	}
	return models.TerminationOngoing, false
}

// BeginRound advances to the next round: picks its category and items,
// resets both time budgets and decides the opener. Opener priority is the
// previous round's loser, then the player who did not score last, then plain
// alternation; the very first round of a duel opens randomly.
func (mc *Machine) BeginRound() {
	m := mc.M
	m.RoundIndex++
	m.Category = m.TopicSequence[m.RoundIndex]
	m.RoundItems = mc.cat.Items(m.Settings.League, m.Category)
	m.Named = nil
	m.NamedKeys = make(map[string]bool)
	m.Status = models.MatchStatusRoundInProgress

	bank := m.Settings.TimeBank()
	for i := range m.TimeBudgets {
		m.TimeBudgets[i] = bank
	}

	m.TurnOwner = mc.openerFor(m.RoundIndex)
	m.PrevRoundLoser = -1
	m.LastGuesser = -1
}

func (mc *Machine) openerFor(round int) int {
	m := mc.M
	if !m.Competitive() {
		return 0
	}
	if round == 0 {
		return mc.rng.IntN(2)
	}
	if m.PrevRoundLoser >= 0 {
		return m.PrevRoundLoser
	}
	if m.LastGuesser >= 0 {
		return 1 - m.LastGuesser
	}
	return round % 2
}

// GuessOutcome reports what a processed guess did to the round.
type GuessOutcome int

const (
	GuessApplied GuessOutcome = iota
	GuessRoundComplete
	GuessBudgetExhausted
)

// Evaluate resolves raw guess text against the current round.
func (mc *Machine) Evaluate(text string) guess.Result {
	return mc.eval.Evaluate(text, mc.M.RoundItems, mc.M.NamedKeys)
}

// ApplyGuess commits an accepted guess by the acting participant. The elapsed
// thinking time is debited first; a budget that runs dry on the clock is an
// expiry even when the answer itself was right, and the item is not credited.
// On success the turn passes to the opponent.
func (mc *Machine) ApplyGuess(item *models.Item, actor int, elapsed time.Duration) GuessOutcome {
	m := mc.M
	m.TimeBudgets[actor] -= elapsed
	if m.TimeBudgets[actor] < 0 {
		m.TimeBudgets[actor] = 0
		return GuessBudgetExhausted
	}

	m.Named = append(m.Named, models.NamedItem{
		Key:         item.CanonicalKey,
		DisplayName: item.DisplayName,
		PrimaryName: item.PrimaryName,
		By:          actor,
	})
	m.NamedKeys[item.CanonicalKey] = true
	m.LastGuesser = actor
	if m.Competitive() {
		m.TurnOwner = 1 - actor
	}

	if len(m.Named) == len(m.RoundItems) {
		mc.settleCompleted()
		return GuessRoundComplete
	}
	return GuessApplied
}

// settleCompleted closes a fully named round as a draw. The last guesser is
// kept so the other side opens the next round.
func (mc *Machine) settleCompleted() {
	m := mc.M
	if m.Competitive() {
		m.Scores[0] += 0.5
		m.Scores[1] += 0.5
	} else {
		m.Scores[0]++
	}
	m.History = append(m.History, models.RoundRecord{
		Category:  m.Category,
		NamedByP0: m.NamedCount(0),
		NamedByP1: m.NamedCount(1),
		EndReason: models.RoundEndCompleted,
		Winner:    models.WinnerDraw,
	})
	m.Status = models.MatchStatusRoundSettling
	m.TurnOwner = -1
	m.PrevRoundLoser = -1
}

// ResolveExpiry ends the round against the current turn owner, whether the
// clock ran out or they surrendered. The opponent takes the point and the
// loser opens the next round.
func (mc *Machine) ResolveExpiry(reason models.RoundEndReason) {
	m := mc.M
	loser := m.TurnOwner
	m.TimeBudgets[loser] = 0

	rec := models.RoundRecord{
		Category:  m.Category,
		NamedByP0: m.NamedCount(0),
		NamedByP1: m.NamedCount(1),
		EndReason: reason,
		EndedBy:   m.Participants[loser].Nickname,
	}
	if m.Competitive() {
		winner := 1 - loser
		m.Scores[winner]++
		rec.Winner = models.WinnerByIndex(winner)
	}
	m.History = append(m.History, rec)
	m.Status = models.MatchStatusRoundSettling
	m.TurnOwner = -1
	m.PrevRoundLoser = loser
	m.LastGuesser = -1
}

// Terminate marks the match over with the given reason.
func (mc *Machine) Terminate(reason models.TerminationReason) {
	mc.M.Status = models.MatchStatusOver
	mc.M.Termination = reason
	mc.M.TurnOwner = -1
}
