package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	inventoryHandler "brew-planner/internal/api/handlers/inventory"
	recipeHandler "brew-planner/internal/api/handlers/recipe"
	recommendationHandler "brew-planner/internal/api/handlers/recommendation"
	"brew-planner/internal/core/domain"
	"brew-planner/internal/core/recommendation"
	"brew-planner/internal/core/units"
	"brew-planner/internal/infrastructure/config"
	"brew-planner/internal/infrastructure/metrics"
	"brew-planner/internal/infrastructure/store"
	"brew-planner/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		App:    config.AppConfig{Env: "test", Debug: true, Version: "test"},
		Server: config.ServerConfig{MaxBodyBytes: 1 << 16},
		Store:  config.StoreConfig{Driver: "memory"},
	}
}

func testRouter(t *testing.T) (*gin.Engine, *metrics.Metrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	received := asOf.Add(-10 * 24 * time.Hour)
	soon := asOf.Add(3 * 24 * time.Hour)
	repo, err := store.NewMemoryStore(&store.Seed{
		Ingredients: []domain.Ingredient{
			{ID: "pale", Name: "Pale Ale Malt", Category: domain.CategoryMalt, BaseUnit: units.Mass},
			{ID: "vienna", Name: "Vienna Malt", Category: domain.CategoryMalt, BaseUnit: units.Mass,
				LowStockThreshold: &units.Amount{Quantity: 2, Unit: "kg"}},
			{ID: "belgian", Name: "Belgian Ale Yeast", Category: domain.CategoryYeast, BaseUnit: units.Count},
			{ID: "abbey", Name: "Abbey Ale Yeast", Category: domain.CategoryYeast, BaseUnit: units.Count},
		},
		Lots: []domain.LotRecord{
			{ID: "P15", IngredientID: "pale", Quantity: 15, Unit: "kg", ReceivedAt: received, ExpiresAt: &soon},
			{ID: "P10", IngredientID: "pale", Quantity: 10, Unit: "kg", ReceivedAt: received},
			{ID: "V1", IngredientID: "vienna", Quantity: 1.9, Unit: "kg", ReceivedAt: received},
			{ID: "A1", IngredientID: "abbey", Quantity: 2, Unit: "pkg", ReceivedAt: received},
		},
		Recipes: []domain.Recipe{
			{ID: "pale-ale", Name: "House Pale", Style: "APA", ABV: 5.2, Requirements: []domain.RecipeRequirement{
				{IngredientID: "pale", Quantity: 25, Unit: "kg"},
			}},
			{ID: "dubbel", Name: "Dubbel", Style: "Dubbel", ABV: 7, Requirements: []domain.RecipeRequirement{
				{IngredientID: "pale", Quantity: 5, Unit: "kg"},
				{IngredientID: "belgian", Quantity: 2, Unit: "pkg"},
			}},
		},
		Substitutions: []domain.SubstitutionRule{
			{FromIngredientID: "belgian", ToIngredientID: "abbey", ConversionRatio: 1, SuitabilityScore: 0.8},
		},
		Prices: map[string]string{"pale": "1.35"},
	})
	require.NoError(t, err)

	m := metrics.New()
	svc := recommendation.NewService(repo, recommendation.NewEngine(recommendation.Options{Parallelism: 2}),
		recommendation.WithMetrics(m))
	return SetupRouter(testConfig(), svc, m), m
}

func do(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestPossibleRecipes(t *testing.T) {
	r, _ := testRouter(t)

	w := do(r, http.MethodPost, "/api/v1/recommendations/possible-recipes?as_of=2026-05-01", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp recommendationHandler.PossibleRecipesResponse
	decode(t, w, &resp)
	require.Len(t, resp.Recipes, 2)
	assert.Equal(t, "pale-ale", resp.Recipes[0].RecipeID)
	assert.True(t, resp.Recipes[0].CanBrew)
	assert.Equal(t, "dubbel", resp.Recipes[1].RecipeID)
	assert.True(t, resp.Recipes[1].CanBrew, "abbey yeast covers the belgian yeast")
	require.Len(t, resp.Recipes[1].Substitutions, 1)
	assert.Equal(t, "belgian", resp.Recipes[1].Substitutions[0].IngredientID)

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestPossibleRecipes_Filters(t *testing.T) {
	r, _ := testRouter(t)

	cases := []struct {
		name  string
		query string
		want  []string
	}{
		{"style", "style=dubbel", []string{"dubbel"}},
		{"abv range", "abv_min=5&abv_max=6", []string{"pale-ale"}},
		{"available only", "available_only=true", []string{"pale-ale", "dubbel"}},
		{"nothing matches", "abv_min=12", []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/v1/recommendations/possible-recipes?as_of=2026-05-01&"+tc.query, nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var resp recommendationHandler.PossibleRecipesResponse
			decode(t, w, &resp)
			got := []string{}
			for _, res := range resp.Recipes {
				got = append(got, res.RecipeID)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPossibleRecipes_BadQuery(t *testing.T) {
	r, _ := testRouter(t)

	for _, q := range []string{"abv_min=strong", "available_only=maybe", "as_of=yesterday", "abv_min=8&abv_max=4"} {
		w := do(r, http.MethodPost, "/api/v1/recommendations/possible-recipes?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)

		var resp common.ErrorResponse
		decode(t, w, &resp)
		assert.Equal(t, common.ErrCodeInvalidRequest, resp.Code)
	}
}

func TestAlerts(t *testing.T) {
	r, _ := testRouter(t)

	w := do(r, http.MethodGet, "/api/v1/recommendations/alerts?as_of=2026-05-01", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp recommendationHandler.AlertsResponse
	decode(t, w, &resp)
	assert.Equal(t, 14, resp.WindowDays)
	require.Len(t, resp.Alerts, 2)
	assert.Equal(t, domain.AlertLowStock, resp.Alerts[0].Kind)
	assert.Equal(t, "vienna", resp.Alerts[0].IngredientID)
	assert.Equal(t, domain.AlertExpiringSoon, resp.Alerts[1].Kind)
	assert.Equal(t, []string{"P15"}, resp.Alerts[1].TriggeringLotIDs)

	w = do(r, http.MethodGet, "/api/v1/recommendations/alerts?as_of=2026-05-01&windowDays=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.Equal(t, 2, resp.WindowDays)
	assert.Len(t, resp.Alerts, 1)
}

func TestRecommendations(t *testing.T) {
	r, _ := testRouter(t)

	w := do(r, http.MethodGet, "/api/v1/recommendations?as_of=2026-05-01", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp recommendationHandler.RecommendationsResponse
	decode(t, w, &resp)
	assert.True(t, resp.AsOf.Equal(asOf))
	assert.Equal(t, 14, resp.WindowDays)
	require.Len(t, resp.PossibleRecipes, 2)
	assert.Equal(t, "pale-ale", resp.PossibleRecipes[0].RecipeID)
	assert.Len(t, resp.Alerts, 2)

	w = do(r, http.MethodGet, "/api/v1/recommendations?as_of=2026-05-01&windowDays=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.Equal(t, 2, resp.WindowDays)
	assert.Len(t, resp.Alerts, 1)

	w = do(r, http.MethodGet, "/api/v1/recommendations?windowDays=soon", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecipeEndpoints(t *testing.T) {
	r, _ := testRouter(t)

	w := do(r, http.MethodGet, "/api/v1/recipes", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list recipeHandler.ListResponse
	decode(t, w, &list)
	require.Len(t, list.Recipes, 2)
	assert.Equal(t, "pale-ale", list.Recipes[0].ID)
	assert.Len(t, list.Recipes[1].Requirements, 2)

	w = do(r, http.MethodGet, "/api/v1/recipes?style=dubbel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &list)
	require.Len(t, list.Recipes, 1)
	assert.Equal(t, "dubbel", list.Recipes[0].ID)

	w = do(r, http.MethodGet, "/api/v1/recipes?abv_min=8&abv_max=4", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/v1/recipes/pale-ale?as_of=2026-05-01", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var detail recipeHandler.DetailResponse
	decode(t, w, &detail)
	assert.Equal(t, "House Pale", detail.Recipe.Name)
	assert.True(t, detail.Feasibility.CanBrew)

	w = do(r, http.MethodGet, "/api/v1/recipes/pale-ale?as_of=2026-05-05", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &detail)
	assert.False(t, detail.Feasibility.CanBrew, "P15 has expired")

	w = do(r, http.MethodGet, "/api/v1/recipes/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIngredientEndpoints(t *testing.T) {
	r, _ := testRouter(t)

	w := do(r, http.MethodGet, "/api/v1/inventory/vienna?as_of=2026-05-01", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var detail recommendation.IngredientDetail
	decode(t, w, &detail)
	assert.Equal(t, units.BaseQuantity(1_900_000), detail.TotalQuantity)
	assert.True(t, detail.LowStock)
	require.NotNil(t, detail.LowStockThreshold)
	assert.Equal(t, units.BaseQuantity(2_000_000), *detail.LowStockThreshold)

	w = do(r, http.MethodGet, "/api/v1/inventory/pale?as_of=2026-05-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &detail)
	require.NotNil(t, detail.UnitPrice)
	assert.Equal(t, "1.35", detail.UnitPrice.String())

	w = do(r, http.MethodGet, "/api/v1/inventory/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/api/v1/inventory/lots/V1/consume", gin.H{"quantity": 100, "unit": "g", "type": "expiry"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(r, http.MethodPost, "/api/v1/inventory/lots/V1/consume", gin.H{"quantity": 200, "unit": "g", "type": "purchase"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/v1/inventory/vienna/movements", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var history inventoryHandler.MovementsResponse
	decode(t, w, &history)
	assert.Equal(t, "vienna", history.IngredientID)
	require.Len(t, history.Movements, 2)
	assert.Equal(t, domain.MovementPurchase, history.Movements[0].Type)
	assert.Equal(t, units.BaseQuantity(1_900_000), history.Movements[0].Quantity)
	assert.Equal(t, domain.MovementExpiry, history.Movements[1].Type)
	assert.Equal(t, units.BaseQuantity(-100_000), history.Movements[1].Quantity)

	w = do(r, http.MethodGet, "/api/v1/inventory/ghost/movements", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/api/v1/inventory/stats?as_of=2026-05-01", nil)
	assert.Equal(t, http.StatusOK, w.Code, "static routes still win over the ingredient id")
}

func TestSubstitutions(t *testing.T) {
	r, _ := testRouter(t)

	w := do(r, http.MethodPost, "/api/v1/recommendations/substitutions?as_of=2026-05-01",
		gin.H{"ingredientId": "belgian", "quantity": 3, "unit": "pkg"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report recommendation.SubstitutionReport
	decode(t, w, &report)
	assert.Equal(t, units.BaseQuantity(3), report.Deficit)
	assert.Equal(t, units.BaseQuantity(2), report.Covered)
	assert.False(t, report.FullyCovered)

	w = do(r, http.MethodPost, "/api/v1/recommendations/substitutions", gin.H{"ingredientId": "ghost", "quantity": 1, "unit": "kg"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/api/v1/recommendations/substitutions", gin.H{"ingredientId": "belgian", "quantity": 1, "unit": "kg"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(r, http.MethodPost, "/api/v1/recommendations/substitutions", gin.H{"quantity": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInventoryEndpoints(t *testing.T) {
	r, m := testRouter(t)

	w := do(r, http.MethodGet, "/api/v1/inventory?as_of=2026-05-01&category=malt", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list struct {
		Items []recommendation.InventoryItem `json:"items"`
	}
	decode(t, w, &list)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "pale", list.Items[0].IngredientID)
	assert.Equal(t, units.BaseQuantity(25_000_000), list.Items[0].TotalQuantity)

	w = do(r, http.MethodGet, "/api/v1/inventory?category=spices", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/v1/inventory/stats?as_of=2026-05-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats recommendation.Stats
	decode(t, w, &stats)
	assert.Equal(t, 3, stats.TotalIngredients)
	assert.Equal(t, "33.75", stats.TotalValue.StringFixed(2))
	assert.Equal(t, 1, stats.LowStockCount)

	w = do(r, http.MethodPost, "/api/v1/inventory/lots", gin.H{"ingredientId": "vienna", "quantity": 500, "unit": "g"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var lot domain.InventoryLot
	decode(t, w, &lot)
	assert.True(t, strings.HasPrefix(lot.ID, "lot-"))
	assert.Equal(t, units.BaseQuantity(500_000), lot.QuantityRemaining)

	w = do(r, http.MethodPost, "/api/v1/inventory/lots", gin.H{"ingredientId": "ghost", "quantity": 1, "unit": "kg"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/api/v1/inventory/lots/V1/consume", gin.H{"quantity": 900, "unit": "g"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &lot)
	assert.Equal(t, units.BaseQuantity(1_000_000), lot.QuantityRemaining)

	w = do(r, http.MethodPost, "/api/v1/inventory/lots/V1/consume", gin.H{"quantity": 5, "unit": "kg"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPost, "/api/v1/inventory/lots/V1/consume", gin.H{"quantity": 1, "unit": "l"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(r, http.MethodPost, "/api/v1/inventory/lots/nope/consume", gin.H{"quantity": 1, "unit": "g"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/api/v1/inventory/consume?as_of=2026-05-01", gin.H{"ingredientId": "pale", "quantity": 20, "unit": "kg"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var consumed struct {
		Draws []struct {
			LotID    string             `json:"lotId"`
			Quantity units.BaseQuantity `json:"quantity"`
		} `json:"draws"`
	}
	decode(t, w, &consumed)
	require.Len(t, consumed.Draws, 2)
	assert.Equal(t, "P15", consumed.Draws[0].LotID, "first-expiring lot is drawn first")

	w = do(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "brew_store_writes_total")
	assert.NotNil(t, m)
}

func TestAddLot_OversizedQuantity(t *testing.T) {
	r, _ := testRouter(t)

	w := do(r, http.MethodPost, "/api/v1/inventory/lots", gin.H{"ingredientId": "pale", "quantity": 1e13, "unit": "kg"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	w = do(r, http.MethodGet, "/api/v1/inventory?as_of=2026-05-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Items []recommendation.InventoryItem `json:"items"`
	}
	decode(t, w, &resp)
	for _, item := range resp.Items {
		assert.GreaterOrEqual(t, item.TotalQuantity, units.BaseQuantity(0), item.IngredientID)
	}
}

func TestDeduplication_OnlyInventoryWrites(t *testing.T) {
	r, _ := testRouter(t)

	for i := 0; i < 2; i++ {
		w := do(r, http.MethodPost, "/api/v1/recommendations/possible-recipes", nil)
		assert.Equal(t, http.StatusOK, w.Code, "evaluation %d", i)
		w = do(r, http.MethodPost, "/api/v1/recommendations/substitutions", gin.H{"ingredientId": "belgian", "quantity": 1, "unit": "pkg"})
		assert.Equal(t, http.StatusOK, w.Code, "substitution %d", i)
	}

	body := gin.H{"ingredientId": "pale", "quantity": 1, "unit": "kg"}
	w := do(r, http.MethodPost, "/api/v1/inventory/lots", body)
	assert.Equal(t, http.StatusCreated, w.Code)
	w = do(r, http.MethodPost, "/api/v1/inventory/lots", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestHealthEndpoints(t *testing.T) {
	r, _ := testRouter(t)

	for _, path := range []string{"/health", "/ready", "/live"} {
		w := do(r, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := do(r, http.MethodGet, "/health", nil)
	var resp map[string]interface{}
	decode(t, w, &resp)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "memory", resp["store"])
}

func TestBodySizeLimit(t *testing.T) {
	r, _ := testRouter(t)

	big := gin.H{"ingredientId": strings.Repeat("x", 1<<17), "quantity": 1, "unit": "kg"}
	w := do(r, http.MethodPost, "/api/v1/inventory/lots", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
