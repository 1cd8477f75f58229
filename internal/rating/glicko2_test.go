package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The worked example from Glickman's Glicko-2 paper: a 1500/200 player
// beats 1400/30 then loses to 1550/100 and 1700/300.
func TestUpdateGlickmanExample(t *testing.T) {
	p := Player{Rating: 1500, RD: 200, Volatility: 0.06}
	outcomes := []Outcome{
		{Opponent: Player{Rating: 1400, RD: 30, Volatility: 0.06}, Score: 1},
		{Opponent: Player{Rating: 1550, RD: 100, Volatility: 0.06}, Score: 0},
		{Opponent: Player{Rating: 1700, RD: 300, Volatility: 0.06}, Score: 0},
	}

	got := Update(p, outcomes)
	assert.InDelta(t, 1464.06, got.Rating, 0.5)
	assert.InDelta(t, 151.52, got.RD, 0.5)
	assert.InDelta(t, 0.05999, got.Volatility, 0.001)
}

func TestUpdateNoGamesGrowsDeviation(t *testing.T) {
	p := NewPlayer()
	got := Update(p, nil)
	assert.Equal(t, p.Rating, got.Rating)
	assert.Greater(t, got.RD, p.RD)
	assert.Equal(t, p.Volatility, got.Volatility)
}

func TestDuelIsZeroSumInDirection(t *testing.T) {
	a, b := NewPlayer(), NewPlayer()
	newA, newB := Duel(a, b, 1)
	assert.Greater(t, newA.Rating, a.Rating)
	assert.Less(t, newB.Rating, b.Rating)

	drawA, drawB := Duel(a, b, 0.5)
	assert.InDelta(t, a.Rating, drawA.Rating, 1e-6)
	assert.InDelta(t, b.Rating, drawB.Rating, 1e-6)
}

func TestDuelUpsetSwingsMore(t *testing.T) {
	strong := Player{Rating: 1800, RD: 80, Volatility: 0.06}
	weak := Player{Rating: 1400, RD: 80, Volatility: 0.06}

	_, weakAfterLoss := Duel(strong, weak, 1)
	weakAfterWin, _ := Duel(weak, strong, 1)

	lost := weak.Rating - weakAfterLoss.Rating
	gained := weakAfterWin.Rating - weak.Rating
	assert.Greater(t, gained, lost)
}
