// Package rating implements the Glicko-2 rating system for two-player
// results. The math follows Glickman's published description; it is small
// enough that pulling in a dependency would not buy anything.
package rating

import "math"

const (
	// System constant constraining volatility drift between periods.
	tau = 0.5
	// Conversion factor between the public scale and the internal one.
	scale = 173.7178

	convergence = 1e-6
)

// Default values for a player with no rated history.
const (
	DefaultRating     = 1500.0
	DefaultRD         = 350.0
	DefaultVolatility = 0.06
)

// Player is a Glicko-2 rating triple on the public scale.
type Player struct {
	Rating     float64
	RD         float64
	Volatility float64
}

// NewPlayer returns the unrated starting point.
func NewPlayer() Player {
	return Player{Rating: DefaultRating, RD: DefaultRD, Volatility: DefaultVolatility}
}

// Outcome is one opponent plus the score achieved against them:
// 1 win, 0 loss, 0.5 draw.
type Outcome struct {
	Opponent Player
	Score    float64
}

func g(phi float64) float64 {
	return 1 / math.Sqrt(1+3*phi*phi/(math.Pi*math.Pi))
}

func expected(mu, muJ, phiJ float64) float64 {
	return 1 / (1 + math.Exp(-g(phiJ)*(mu-muJ)))
}

// Update applies a rating period's outcomes to a player and returns the new
// triple. With no outcomes only the deviation grows.
func Update(p Player, outcomes []Outcome) Player {
	mu := (p.Rating - DefaultRating) / scale
	phi := p.RD / scale

	if len(outcomes) == 0 {
		phi = math.Sqrt(phi*phi + p.Volatility*p.Volatility)
		return Player{Rating: p.Rating, RD: phi * scale, Volatility: p.Volatility}
	}

	// Estimated variance and improvement from the period's games.
	v := 0.0
	deltaSum := 0.0
	for _, o := range outcomes {
		muJ := (o.Opponent.Rating - DefaultRating) / scale
		phiJ := o.Opponent.RD / scale
		e := expected(mu, muJ, phiJ)
		gj := g(phiJ)
		v += gj * gj * e * (1 - e)
		deltaSum += gj * (o.Score - e)
	}
	v = 1 / v
	delta := v * deltaSum

	sigma := solveVolatility(p.Volatility, delta, phi, v)

	phiStar := math.Sqrt(phi*phi + sigma*sigma)
	phiNew := 1 / math.Sqrt(1/(phiStar*phiStar)+1/v)
	muNew := mu + phiNew*phiNew*deltaSum

	return Player{
		Rating:     muNew*scale + DefaultRating,
		RD:         phiNew * scale,
		Volatility: sigma,
	}
}

// solveVolatility runs the Illinois-variant bisection from the Glicko-2
// paper to find the new volatility.
func solveVolatility(sigma, delta, phi, v float64) float64 {
	a := math.Log(sigma * sigma)
	f := func(x float64) float64 {
		ex := math.Exp(x)
		num := ex * (delta*delta - phi*phi - v - ex)
		den := 2 * (phi*phi + v + ex) * (phi*phi + v + ex)
		return num/den - (x-a)/(tau*tau)
	}

	A := a
	var B float64
	if delta*delta > phi*phi+v {
		B = math.Log(delta*delta - phi*phi - v)
	} else {
		k := 1.0
		for f(a-k*tau) < 0 {
			k++
		}
		B = a - k*tau
	}

	fA, fB := f(A), f(B)
	for math.Abs(B-A) > convergence {
		C := A + (A-B)*fA/(fB-fA)
		fC := f(C)
		if fC*fB <= 0 {
			A, fA = B, fB
		} else {
			fA /= 2
		}
		B, fB = C, fC
	}
	return math.Exp(A / 2)
}

// Duel rates one head-to-head match: scoreA is A's result (1 win, 0 loss,
// 0.5 draw) and both updated players are returned.
func Duel(a, b Player, scoreA float64) (Player, Player) {
	newA := Update(a, []Outcome{{Opponent: b, Score: scoreA}})
	newB := Update(b, []Outcome{{Opponent: a, Score: 1 - scoreA}})
	return newA, newB
}
