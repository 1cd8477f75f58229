package guess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avbelov/squadduel/internal/models"
)

func item(display, primary string, extra ...string) *models.Item {
	aliases := map[string]struct{}{}
	for _, a := range append([]string{display, primary}, extra...) {
		aliases[a] = struct{}{}
	}
	return &models.Item{
		DisplayName:  display,
		PrimaryName:  primary,
		CanonicalKey: display,
		Aliases:      aliases,
	}
}

func pool() []*models.Item {
	return []*models.Item{
		item("bruno fernandes", "fernandes", "bruno"),
		item("andre onana", "onana"),
		item("marcus rashford", "rashford"),
	}
}

func TestEvaluateExact(t *testing.T) {
	e := NewEvaluator(DefaultThreshold)

	res := e.Evaluate("  Onana ", pool(), nil)
	require.Equal(t, Exact, res.Kind)
	assert.Equal(t, "andre onana", res.Item.DisplayName)
	assert.True(t, res.Accepted())
}

func TestEvaluateFuzzyTypo(t *testing.T) {
	e := NewEvaluator(DefaultThreshold)

	// One substitution over eight letters scores 0.875 against "rashford".
	res := e.Evaluate("rashfort", pool(), nil)
	require.Equal(t, Fuzzy, res.Kind)
	assert.Equal(t, "marcus rashford", res.Item.DisplayName)
	assert.True(t, res.Accepted())
}

func TestEvaluateBelowThreshold(t *testing.T) {
	e := NewEvaluator(DefaultThreshold)

	res := e.Evaluate("ronaldo", pool(), nil)
	assert.Equal(t, NotFound, res.Kind)
	assert.False(t, res.Accepted())
}

func TestEvaluateAlreadyNamed(t *testing.T) {
	e := NewEvaluator(DefaultThreshold)
	named := map[string]bool{"andre onana": true}

	res := e.Evaluate("onana", pool(), named)
	require.Equal(t, AlreadyNamed, res.Kind)
	assert.Equal(t, "andre onana", res.Item.DisplayName)
	assert.False(t, res.Accepted())
}

func TestEvaluatePrefersUnnamedExactOverNamed(t *testing.T) {
	e := NewEvaluator(DefaultThreshold)
	// "bruno fernandes" is taken but "fernandes" still resolves nothing else;
	// a guess for a different unnamed item must not be shadowed by the named one.
	named := map[string]bool{"bruno fernandes": true}

	res := e.Evaluate("rashford", pool(), named)
	assert.Equal(t, Exact, res.Kind)

	res = e.Evaluate("bruno", pool(), named)
	assert.Equal(t, AlreadyNamed, res.Kind)
}

func TestEvaluateEmptyInput(t *testing.T) {
	e := NewEvaluator(DefaultThreshold)
	assert.Equal(t, NotFound, e.Evaluate("   ", pool(), nil).Kind)
}
