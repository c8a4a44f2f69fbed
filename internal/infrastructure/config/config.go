package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"brew-planner/internal/core/domain"
	"brew-planner/internal/core/units"
	"brew-planner/internal/pkg/common"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig       `mapstructure:"app"`
	Server      ServerConfig    `mapstructure:"server"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Store       StoreConfig     `mapstructure:"store"`
	Engine      EngineConfig    `mapstructure:"engine"`
	Pricing     PricingConfig   `mapstructure:"pricing"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	DedupWindow time.Duration   `mapstructure:"dedup_window"`
	LogLevel    string          `mapstructure:"log_level"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env      string `mapstructure:"env"`
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	Version  string `mapstructure:"version"`
	Name     string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// CacheConfig 緩存配置
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Backend         string        `mapstructure:"backend"` // memory | redis
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	// AsOfBucket 評估時點在快取鍵中的截斷粒度
	AsOfBucket time.Duration `mapstructure:"as_of_bucket"`
}

// StoreConfig 資料來源設定
type StoreConfig struct {
	Driver   string `mapstructure:"driver"` // memory | sqlite3 | postgres | mysql
	DSN      string `mapstructure:"dsn"`
	SeedFile string `mapstructure:"seed_file"`
}

// EngineConfig 推薦引擎設定
type EngineConfig struct {
	ExpiryWindowDays        int               `mapstructure:"expiry_window_days"`
	RecentlyExpiredLookback time.Duration     `mapstructure:"recently_expired_lookback"`
	LowStockThresholds      map[string]string `mapstructure:"low_stock_thresholds"`
	IncludeExpiredAlerts    bool              `mapstructure:"include_expired_alerts"`
	Parallelism             int               `mapstructure:"parallelism"`
}

// PricingConfig 外部單價服務設定
type PricingConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// 引擎預設值
const (
	DefaultExpiryWindowDays = 14
	DefaultLookback         = 7 * 24 * time.Hour
	DefaultParallelism      = 8
)

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// 加載 .env 文件（不存在時略過）
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	// 設定預設值
	setDefaults()

	// 設定環境變數前綴
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 綁定環境變量
	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("cache.enabled", "CACHE_ENABLED")
	viper.BindEnv("cache.backend", "CACHE_BACKEND")
	viper.BindEnv("cache.redis_addr", "REDIS_ADDR")
	viper.BindEnv("cache.redis_password", "REDIS_PASSWORD")
	viper.BindEnv("store.driver", "STORE_DRIVER")
	viper.BindEnv("store.dsn", "DATABASE_URL")
	viper.BindEnv("store.seed_file", "SEED_FILE")
	viper.BindEnv("engine.expiry_window_days", "EXPIRY_WINDOW_DAYS")
	viper.BindEnv("pricing.base_url", "PRICING_BASE_URL")
	viper.BindEnv("pricing.api_key", "PRICING_API_KEY")
	viper.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	viper.BindEnv("rate_limit.requests", "RATE_LIMIT_REQUESTS")
	viper.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")
	viper.BindEnv("dedup_window", "DEDUP_WINDOW")
	viper.BindEnv("log_level", "LOG_LEVEL")

	// 設定設定檔名稱和路徑
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	// 讀取設定檔
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 解析設定
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 驗證必要設定
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// logger 尚未初始化，改用 fmt.Println
	for _, w := range config.Engine.Normalize() {
		fmt.Println("config warning:", w.Error())
	}

	return &config, nil
}

// setDefaults 設定預設值
func setDefaults() {
	// 應用程式設定
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.debug", true)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.name", "brew-planner")

	// 伺服器設定
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.max_body_bytes", 1<<20)

	// 快取設定
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.redis_addr", "localhost:6379")
	viper.SetDefault("cache.redis_db", 0)
	viper.SetDefault("cache.max_size", 1000)
	viper.SetDefault("cache.ttl", "10m")
	viper.SetDefault("cache.cleanup_interval", "1m")
	viper.SetDefault("cache.as_of_bucket", "1m")

	// 資料來源設定
	viper.SetDefault("store.driver", "memory")
	viper.SetDefault("store.dsn", "")
	viper.SetDefault("store.seed_file", "configs/seed.yaml")

	// 引擎設定
	viper.SetDefault("engine.expiry_window_days", DefaultExpiryWindowDays)
	viper.SetDefault("engine.recently_expired_lookback", DefaultLookback.String())
	viper.SetDefault("engine.low_stock_thresholds", map[string]string{})
	viper.SetDefault("engine.include_expired_alerts", true)
	viper.SetDefault("engine.parallelism", DefaultParallelism)

	// 單價服務設定
	viper.SetDefault("pricing.enabled", false)
	viper.SetDefault("pricing.timeout", "5s")

	// 限流設定
	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.requests", 100)
	viper.SetDefault("rate_limit.window", "1m")

	viper.SetDefault("dedup_window", "1s")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	// 驗證伺服器設定
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	// 驗證快取設定
	if config.Cache.Enabled {
		if config.Cache.MaxSize <= 0 {
			return fmt.Errorf("invalid cache max size")
		}
		if config.Cache.TTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
		if config.Cache.CleanupInterval <= 0 {
			return fmt.Errorf("invalid cache cleanup interval")
		}
		switch config.Cache.Backend {
		case "memory", "redis":
		default:
			return fmt.Errorf("unknown cache backend %q", config.Cache.Backend)
		}
	}

	// 驗證資料來源設定
	switch config.Store.Driver {
	case "memory":
	case "sqlite3", "postgres", "mysql":
		if config.Store.DSN == "" {
			return fmt.Errorf("store dsn is required for driver %s", config.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", config.Store.Driver)
	}

	if config.Pricing.Enabled && config.Pricing.BaseURL == "" {
		return fmt.Errorf("pricing base url is required")
	}

	return nil
}

// Normalize 將無效的引擎設定改回預設值，回傳每一項 ConfigurationError
func (e *EngineConfig) Normalize() []error {
	var warnings []error
	if e.ExpiryWindowDays <= 0 {
		warnings = append(warnings, common.NewConfigurationError("engine.expiry_window_days",
			strconv.Itoa(DefaultExpiryWindowDays), fmt.Errorf("must be positive, got %d", e.ExpiryWindowDays)))
		e.ExpiryWindowDays = DefaultExpiryWindowDays
	}
	if e.RecentlyExpiredLookback < 0 {
		warnings = append(warnings, common.NewConfigurationError("engine.recently_expired_lookback",
			DefaultLookback.String(), fmt.Errorf("must not be negative, got %s", e.RecentlyExpiredLookback)))
		e.RecentlyExpiredLookback = DefaultLookback
	}
	if e.Parallelism <= 0 {
		warnings = append(warnings, common.NewConfigurationError("engine.parallelism",
			strconv.Itoa(DefaultParallelism), fmt.Errorf("must be positive, got %d", e.Parallelism)))
		e.Parallelism = DefaultParallelism
	}
	_, issues := e.CategoryThresholds()
	return append(warnings, issues...)
}

// CategoryThresholds 解析類別低庫存門檻，例如 malt: "5kg"；無法解析的項目略過
func (e EngineConfig) CategoryThresholds() (map[domain.Category]units.Amount, []error) {
	out := make(map[domain.Category]units.Amount, len(e.LowStockThresholds))
	var issues []error
	for key, raw := range e.LowStockThresholds {
		cat, err := domain.ParseCategory(key)
		if err != nil {
			issues = append(issues, common.NewConfigurationError("engine.low_stock_thresholds."+key, "no threshold", err))
			continue
		}
		amount, err := units.ParseAmount(raw)
		if err != nil {
			issues = append(issues, common.NewConfigurationError("engine.low_stock_thresholds."+key, "no threshold", err))
			continue
		}
		out[cat] = amount
	}
	return out, issues
}
