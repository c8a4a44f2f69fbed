package inventory

import (
	"errors"
	"math"
	"math/rand"
	"strconv"
	"testing"
	"time"

	"brew-planner/internal/core/domain"
	"brew-planner/internal/core/units"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func days(n int) *time.Time {
	t := asOf.Add(time.Duration(n) * 24 * time.Hour)
	return &t
}

func testCatalog() domain.Catalog {
	return domain.NewCatalog([]domain.Ingredient{
		{ID: "pale", Name: "Pale Ale Malt", Category: domain.CategoryMalt, BaseUnit: units.Mass},
		{ID: "vienna", Name: "Vienna", Category: domain.CategoryMalt, BaseUnit: units.Mass,
			LowStockThreshold: &units.Amount{Quantity: 2, Unit: "kg"}},
		{ID: "cascade", Name: "Cascade", Category: domain.CategoryHop, BaseUnit: units.Mass},
		{ID: "us05", Name: "US-05", Category: domain.CategoryYeast, BaseUnit: units.Count},
	})
}

func TestAggregate_SumsAndEarliestExpiry(t *testing.T) {
	agg := NewAggregator(0, nil)
	stock := agg.Aggregate([]domain.InventoryLot{
		{ID: "L1", IngredientID: "pale", QuantityRemaining: 15_000_000, ExpiresAt: days(5)},
		{ID: "L2", IngredientID: "pale", QuantityRemaining: 10_000_000, ExpiresAt: days(60)},
		{ID: "L3", IngredientID: "cascade", QuantityRemaining: 500_000},
	}, asOf)

	require.Len(t, stock, 2)
	assert.Equal(t, units.BaseQuantity(25_000_000), stock["pale"].TotalQuantity)
	require.NotNil(t, stock["pale"].EarliestExpiry)
	assert.True(t, stock["pale"].EarliestExpiry.Equal(*days(5)))
	assert.Nil(t, stock["cascade"].EarliestExpiry)
	assert.Equal(t, units.BaseQuantity(0), stock.Available("missing"))
}

func TestAggregate_TotalNeverWrapsNegative(t *testing.T) {
	lots := make([]domain.InventoryLot, 0, 10_000)
	for i := 0; i < 10_000; i++ {
		lots = append(lots, domain.InventoryLot{ID: "L" + strconv.Itoa(i), IngredientID: "pale", QuantityRemaining: units.MaxQuantity})
	}

	stock := NewAggregator(0, nil).Aggregate(lots, asOf)
	assert.Equal(t, units.BaseQuantity(math.MaxInt64), stock["pale"].TotalQuantity)
}

func TestAggregate_ExpiredLots(t *testing.T) {
	agg := NewAggregator(7*24*time.Hour, nil)
	stock := agg.Aggregate([]domain.InventoryLot{
		{ID: "fresh", IngredientID: "pale", QuantityRemaining: 1_000, ExpiresAt: days(1)},
		{ID: "recent", IngredientID: "pale", QuantityRemaining: 2_000, ExpiresAt: days(-2)},
		{ID: "ancient", IngredientID: "pale", QuantityRemaining: 4_000, ExpiresAt: days(-30)},
		{ID: "gone", IngredientID: "cascade", QuantityRemaining: 4_000, ExpiresAt: days(-30)},
	}, asOf)

	pale := stock["pale"]
	assert.Equal(t, units.BaseQuantity(1_000), pale.TotalQuantity)
	require.Len(t, pale.RecentlyExpired, 1)
	assert.Equal(t, "recent", pale.RecentlyExpired[0].LotID)

	_, ok := stock["cascade"]
	assert.False(t, ok, "lots expired beyond the look-back are dropped entirely")
}

func TestAggregate_ExpiryBoundaryIsUsable(t *testing.T) {
	stock := NewAggregator(0, nil).Aggregate([]domain.InventoryLot{
		{ID: "L1", IngredientID: "pale", QuantityRemaining: 1_000, ExpiresAt: &asOf},
	}, asOf)
	assert.Equal(t, units.BaseQuantity(1_000), stock["pale"].TotalQuantity)
}

func TestAggregate_ZeroQuantityLots(t *testing.T) {
	stock := NewAggregator(0, nil).Aggregate([]domain.InventoryLot{
		{ID: "empty", IngredientID: "pale", QuantityRemaining: 0, ExpiresAt: days(1)},
		{ID: "full", IngredientID: "pale", QuantityRemaining: 3_000, ExpiresAt: days(9)},
	}, asOf)

	pale := stock["pale"]
	assert.Equal(t, units.BaseQuantity(3_000), pale.TotalQuantity)
	require.NotNil(t, pale.EarliestExpiry)
	assert.True(t, pale.EarliestExpiry.Equal(*days(9)), "zero-quantity lots never set the earliest expiry")
}

func TestAggregate_PermutationInvariant(t *testing.T) {
	catalog := testCatalog()
	thresholds, issues := NewCatalogThresholds(catalog, nil)
	require.Empty(t, issues)
	agg := NewAggregator(3*24*time.Hour, thresholds)

	lots := []domain.InventoryLot{
		{ID: "a", IngredientID: "pale", QuantityRemaining: 1_234_567, ExpiresAt: days(3)},
		{ID: "b", IngredientID: "pale", QuantityRemaining: 7_654_321, ExpiresAt: days(40)},
		{ID: "c", IngredientID: "pale", QuantityRemaining: 1, ExpiresAt: days(-1)},
		{ID: "d", IngredientID: "vienna", QuantityRemaining: 999_999},
		{ID: "e", IngredientID: "cascade", QuantityRemaining: 3, ExpiresAt: days(2)},
		{ID: "f", IngredientID: "cascade", QuantityRemaining: 0, ExpiresAt: days(1)},
		{ID: "g", IngredientID: "us05", QuantityRemaining: 4},
	}
	want := agg.Aggregate(lots, asOf)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		shuffled := make([]domain.InventoryLot, len(lots))
		copy(shuffled, lots)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		assert.Equal(t, want, agg.Aggregate(shuffled, asOf))
	}
}

func TestAggregate_ThresholdsAndTrackedIngredients(t *testing.T) {
	catalog := testCatalog()
	thresholds, issues := NewCatalogThresholds(catalog, map[domain.Category]units.Amount{
		domain.CategoryHop:   {Quantity: 100, Unit: "g"},
		domain.CategoryYeast: {Quantity: 1, Unit: "kg"},
	})
	require.Len(t, issues, 1, "a mass threshold on a count ingredient is a configuration issue")

	stock := NewAggregator(0, thresholds).Aggregate(nil, asOf)

	require.Contains(t, stock, "vienna")
	require.NotNil(t, stock["vienna"].LowStockThreshold)
	assert.Equal(t, units.BaseQuantity(2_000_000), *stock["vienna"].LowStockThreshold)
	assert.Equal(t, units.Mass, stock["vienna"].Dimension)
	require.Contains(t, stock, "cascade")
	assert.Equal(t, units.BaseQuantity(100_000), *stock["cascade"].LowStockThreshold)
	assert.NotContains(t, stock, "pale")
	assert.NotContains(t, stock, "us05")
}

func TestConsumeFEFO(t *testing.T) {
	lots := []domain.InventoryLot{
		{ID: "late", IngredientID: "pale", QuantityRemaining: 10_000, ExpiresAt: days(60)},
		{ID: "early", IngredientID: "pale", QuantityRemaining: 15_000, ExpiresAt: days(5)},
		{ID: "expired", IngredientID: "pale", QuantityRemaining: 50_000, ExpiresAt: days(-1)},
		{ID: "other", IngredientID: "cascade", QuantityRemaining: 50_000},
	}

	updated, draws, err := ConsumeFEFO(lots, "pale", 20_000, asOf)
	require.NoError(t, err)
	assert.Equal(t, []Draw{{LotID: "early", Quantity: 15_000}, {LotID: "late", Quantity: 5_000}}, draws)
	assert.Equal(t, units.BaseQuantity(5_000), updated[0].QuantityRemaining)
	assert.Equal(t, units.BaseQuantity(0), updated[1].QuantityRemaining)
	assert.Equal(t, units.BaseQuantity(50_000), updated[2].QuantityRemaining)
	assert.Equal(t, units.BaseQuantity(15_000), lots[1].QuantityRemaining, "input lots are untouched")

	_, _, err = ConsumeFEFO(lots, "pale", 30_000, asOf)
	assert.True(t, errors.Is(err, domain.ErrInsufficientQuantity))
}
