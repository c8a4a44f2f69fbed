package config

import (
	"testing"
	"time"

	"brew-planner/internal/core/domain"
	"brew-planner/internal/pkg/common"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, time.Minute, cfg.Cache.AsOfBucket)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, DefaultExpiryWindowDays, cfg.Engine.ExpiryWindowDays)
	assert.Equal(t, DefaultLookback, cfg.Engine.RecentlyExpiredLookback)
	assert.Equal(t, time.Second, cfg.DedupWindow)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("EXPIRY_WINDOW_DAYS", "30")
	t.Setenv("STORE_DRIVER", "sqlite3")
	t.Setenv("DATABASE_URL", "file::memory:")
	t.Setenv("APP_CACHE_TTL", "2m")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Engine.ExpiryWindowDays)
	assert.Equal(t, "sqlite3", cfg.Store.Driver)
	assert.Equal(t, "file::memory:", cfg.Store.DSN)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"unknown store driver", map[string]string{"STORE_DRIVER": "mongo"}},
		{"sql driver without dsn", map[string]string{"STORE_DRIVER": "postgres"}},
		{"unknown cache backend", map[string]string{"CACHE_BACKEND": "memcached"}},
		{"pricing without url", map[string]string{"APP_PRICING_ENABLED": "true"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestEngineConfig_NormalizeFallsBack(t *testing.T) {
	e := EngineConfig{
		ExpiryWindowDays:        0,
		RecentlyExpiredLookback: -time.Hour,
		Parallelism:             -1,
		LowStockThresholds:      map[string]string{"malt": "5kg", "fruit": "1kg", "hop": "lots"},
	}

	warnings := e.Normalize()

	assert.Len(t, warnings, 5)
	for _, w := range warnings {
		var ce *common.ConfigurationError
		assert.ErrorAs(t, w, &ce)
	}
	assert.Equal(t, DefaultExpiryWindowDays, e.ExpiryWindowDays)
	assert.Equal(t, DefaultLookback, e.RecentlyExpiredLookback)
	assert.Equal(t, DefaultParallelism, e.Parallelism)
}

func TestEngineConfig_CategoryThresholds(t *testing.T) {
	e := EngineConfig{LowStockThresholds: map[string]string{"Malt": "5kg", "yeast": "2 pkg"}}

	got, issues := e.CategoryThresholds()

	require.Empty(t, issues)
	require.Len(t, got, 2)
	assert.Equal(t, 5.0, got[domain.CategoryMalt].Quantity)
	assert.Equal(t, "kg", got[domain.CategoryMalt].Unit)
	assert.Equal(t, "pkg", got[domain.CategoryYeast].Unit)
}
