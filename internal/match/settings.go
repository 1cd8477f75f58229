package match

import (
	"github.com/avbelov/squadduel/internal/catalog"
	"github.com/avbelov/squadduel/internal/models"
)

// Limits bound the per-round thinking budget players may configure.
type Limits struct {
	MinTimeBankSec     float64
	MaxTimeBankSec     float64
	DefaultTimeBankSec float64
}

// DefaultLimits mirrors the product defaults: 30s floor, 5min ceiling,
// 90s when unspecified.
var DefaultLimits = Limits{
	MinTimeBankSec:     30,
	MaxTimeBankSec:     300,
	DefaultTimeBankSec: 90,
}

// MinRounds returns the smallest allowed round count for a mode. Head to head
// matches need at least three rounds so the opener rotation matters.
func MinRounds(mode models.MatchMode) int {
	if mode == models.ModeCompetitive {
		return 3
	}
	return 1
}

// ResolveSettings validates and normalizes requested match settings against
// the catalog. The time bank is clamped rather than rejected; unknown leagues,
// too few rounds and unknown categories fail outright. The round count is
// capped at the category pool so every round gets a distinct topic.
func ResolveSettings(cat *catalog.Catalog, mode models.MatchMode, req models.MatchSettings, lim Limits) (models.MatchSettings, string) {
	if _, ok := cat.League(req.League); !ok {
		return models.MatchSettings{}, "unknown_league"
	}

	tb := req.TimeBankSec
	if tb == 0 {
		tb = lim.DefaultTimeBankSec
	}
	if tb < lim.MinTimeBankSec {
		tb = lim.MinTimeBankSec
	}
	if tb > lim.MaxTimeBankSec {
		tb = lim.MaxTimeBankSec
	}

	valid := map[string]bool{}
	for _, c := range cat.Categories(req.League) {
		valid[c] = true
	}
	selected := make([]string, 0, len(req.SelectedCategories))
	for _, c := range req.SelectedCategories {
		if !valid[c] {
			return models.MatchSettings{}, "unknown_category"
		}
		selected = append(selected, c)
	}

	poolSize := len(valid)
	if len(selected) > 0 {
		poolSize = len(selected)
	}
	rounds := req.Rounds
	if rounds > poolSize {
		rounds = poolSize
	}
	if rounds < MinRounds(mode) {
		return models.MatchSettings{}, "too_few_rounds"
	}

	return models.MatchSettings{
		League:             req.League,
		Rounds:             rounds,
		TimeBankSec:        tb,
		SelectedCategories: selected,
	}, ""
}
