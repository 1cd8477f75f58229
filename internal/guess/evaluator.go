package guess

import (
	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/avbelov/squadduel/internal/catalog"
	"github.com/avbelov/squadduel/internal/models"
)

// DefaultThreshold is the minimum similarity for a misspelled guess to count.
const DefaultThreshold = 0.85

// Kind classifies the outcome of evaluating one guess.
type Kind int

const (
	NotFound Kind = iota
	Exact
	Fuzzy
	AlreadyNamed
)

// Result is the outcome of one guess evaluation. Item is set for every kind
// but NotFound.
type Result struct {
	Kind Kind
	Item *models.Item
}

// Accepted reports whether the guess scores a point.
func (r Result) Accepted() bool {
	return r.Kind == Exact || r.Kind == Fuzzy
}

// Evaluator matches free-text guesses against a round's item pool, tolerating
// small typos.
type Evaluator struct {
	threshold float64
	metric    *metrics.Levenshtein
}

// NewEvaluator builds an evaluator with the given similarity threshold.
func NewEvaluator(threshold float64) *Evaluator {
	return &Evaluator{threshold: threshold, metric: metrics.NewLevenshtein()}
}

// Evaluate resolves a raw guess against the round items. Exact matches on
// unnamed items win over fuzzy ones; an exact or near match on an already
// named item is reported as such so the caller can tell the player apart
// from a plain miss.
func (e *Evaluator) Evaluate(text string, items []*models.Item, named map[string]bool) Result {
	norm := catalog.Normalize(text)
	if norm == "" {
		return Result{Kind: NotFound}
	}

	var namedHit *models.Item
	for _, it := range items {
		if !it.HasAlias(norm) {
			continue
		}
		if named[it.CanonicalKey] {
			namedHit = it
			continue
		}
		return Result{Kind: Exact, Item: it}
	}

	var best *models.Item
	bestScore := 0.0
	for _, it := range items {
		if named[it.CanonicalKey] {
			continue
		}
		for alias := range it.Aliases {
			if score := strutil.Similarity(norm, alias, e.metric); score > bestScore {
				bestScore = score
				best = it
			}
		}
	}
	if best != nil && bestScore >= e.threshold {
		return Result{Kind: Fuzzy, Item: best}
	}

	if namedHit != nil {
		return Result{Kind: AlreadyNamed, Item: namedHit}
	}
	return Result{Kind: NotFound}
}
