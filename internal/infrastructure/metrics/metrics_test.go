package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()

	m.CountRecipe(true)
	m.CountRecipe(true)
	m.CountRecipe(false)
	m.CountAlert("LowStock")
	m.CountCache("hit")
	m.CountWrite("add_lot", nil)
	m.CountWrite("add_lot", errors.New("boom"))
	m.SetVersion(7)
	m.ObserveEvaluation("possible_recipes", time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecipesEvaluated.WithLabelValues("brewable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecipesEvaluated.WithLabelValues("blocked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsGenerated.WithLabelValues("LowStock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreWrites.WithLabelValues("add_lot", "error")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.SnapshotVersion))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CountRecipe(true)
		m.CountCache("miss")
		m.SetVersion(1)
		m.ObserveEvaluation("alerts", time.Now())
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.CountCache("miss")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `brew_cache_lookups_total{result="miss"} 1`))
}
