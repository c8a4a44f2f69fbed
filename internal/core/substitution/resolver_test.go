package substitution

import (
	"testing"

	"brew-planner/internal/core/domain"
	"brew-planner/internal/core/units"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stockMap map[string]units.BaseQuantity

func (s stockMap) Available(id string) units.BaseQuantity { return s[id] }

func rule(from, to string, ratio, score float64) domain.SubstitutionRule {
	return domain.SubstitutionRule{FromIngredientID: from, ToIngredientID: to, ConversionRatio: ratio, SuitabilityScore: score}
}

func TestResolve_FullCoverage(t *testing.T) {
	idx := NewIndex([]domain.SubstitutionRule{rule("belgian", "abbey", 1.0, 0.8)})
	out := Resolve("belgian", 2, stockMap{"abbey": 5}, idx, nil)

	assert.Equal(t, units.BaseQuantity(2), out.Covered)
	assert.True(t, out.FullyCovered(2))
	require.Len(t, out.Candidates, 1)
	assert.Equal(t, units.BaseQuantity(2), out.Candidates[0].Used)
	assert.Equal(t, units.BaseQuantity(2), out.Candidates[0].Covers)
}

func TestResolve_RankingAndFallThrough(t *testing.T) {
	idx := NewIndex([]domain.SubstitutionRule{
		rule("x", "low", 1.0, 0.2),
		rule("x", "best", 1.0, 0.9),
		rule("x", "tieSmall", 1.0, 0.5),
		rule("x", "tieLarge", 1.0, 0.5),
	})
	avail := stockMap{"low": 100, "best": 300, "tieSmall": 100, "tieLarge": 400}

	out := Resolve("x", 1000, avail, idx, nil)

	ids := make([]string, len(out.Candidates))
	for i, c := range out.Candidates {
		ids[i] = c.IngredientID
	}
	assert.Equal(t, []string{"best", "tieLarge", "tieSmall", "low"}, ids)
	assert.Equal(t, units.BaseQuantity(900), out.Covered)
	assert.False(t, out.FullyCovered(1000))
	assert.Equal(t, units.BaseQuantity(100), out.Candidates[3].Covers)
}

func TestResolve_StopsWhenCovered(t *testing.T) {
	idx := NewIndex([]domain.SubstitutionRule{
		rule("x", "a", 1.0, 0.9),
		rule("x", "b", 1.0, 0.8),
	})
	out := Resolve("x", 50, stockMap{"a": 80, "b": 80}, idx, nil)

	require.Len(t, out.Candidates, 2)
	assert.Equal(t, units.BaseQuantity(50), out.Candidates[0].Used)
	assert.Equal(t, units.BaseQuantity(0), out.Candidates[1].Used, "lower ranked candidates are listed but untouched")
}

func TestResolve_ConversionRatio(t *testing.T) {
	// 1 g of "pellet" is satisfied by 1.5 g of "whole"
	idx := NewIndex([]domain.SubstitutionRule{rule("pellet", "whole", 1.5, 0.7)})

	out := Resolve("pellet", 1001, stockMap{"whole": 10_000}, idx, nil)
	assert.Equal(t, units.BaseQuantity(1502), out.Candidates[0].Used, "rounded up to the smallest base unit")
	assert.Equal(t, units.BaseQuantity(1001), out.Covered)

	out = Resolve("pellet", 1000, stockMap{"whole": 751}, idx, nil)
	assert.Equal(t, units.BaseQuantity(500), out.Covered)
	assert.Equal(t, units.BaseQuantity(750), out.Candidates[0].Used)
}

func TestResolve_CycleGuard(t *testing.T) {
	idx := NewIndex([]domain.SubstitutionRule{
		rule("a", "b", 1.0, 0.9),
		rule("b", "a", 1.0, 0.9),
		rule("a", "a", 1.0, 1.0),
		rule("a", "b", 1.0, 0.5),
	})
	visited := map[string]bool{}
	out := Resolve("a", 10, stockMap{"a": 100, "b": 4}, idx, visited)

	require.Len(t, out.Candidates, 1, "self rules and duplicate visits are skipped")
	assert.Equal(t, "b", out.Candidates[0].IngredientID)
	assert.Equal(t, units.BaseQuantity(4), out.Covered)
	assert.Equal(t, map[string]bool{"a": true, "b": true}, visited)

	again := Resolve("b", 10, stockMap{"a": 100}, idx, visited)
	assert.Empty(t, again.Candidates, "a chain never re-enters an ingredient")
}

func TestResolve_NoRules(t *testing.T) {
	out := Resolve("x", 10, stockMap{}, NewIndex(nil), nil)
	assert.Equal(t, units.BaseQuantity(0), out.Covered)
	assert.NotNil(t, out.Candidates)
	assert.Empty(t, out.Candidates)

	var nilIdx *Index
	assert.Nil(t, nilIdx.From("x"))
}
