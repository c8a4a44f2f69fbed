package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brew-planner/internal/api"
	"brew-planner/internal/api/router"
	"brew-planner/internal/core/cache"
	"brew-planner/internal/core/recommendation"
	"brew-planner/internal/infrastructure/config"
	"brew-planner/internal/infrastructure/metrics"
	"brew-planner/internal/infrastructure/pricing"
	"brew-planner/internal/infrastructure/store"
	"brew-planner/internal/pkg/common"

	"go.uber.org/zap"
)

func main() {
	// 載入設定（含 .env）
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("env", cfg.App.Env),
		zap.String("store_driver", cfg.Store.Driver),
		zap.String("seed_file", cfg.Store.SeedFile),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Bool("pricing_enabled", cfg.Pricing.Enabled),
	)

	// 資料來源
	repo, err := store.Open(cfg.Store)
	if err != nil {
		common.LogFatal("Failed to open store", zap.Error(err))
	}
	defer repo.Close()

	m := metrics.New()
	opts := []recommendation.ServiceOption{recommendation.WithMetrics(m)}

	// 快取；redis 無法連線時直接結束，不默默退回無快取
	resultCache, err := cache.New(&cfg.Cache)
	if err != nil {
		common.LogFatal("Failed to initialize cache", zap.Error(err))
	}
	if resultCache != nil {
		defer resultCache.Close()
		opts = append(opts, recommendation.WithCache(resultCache, cfg.Cache.AsOfBucket))
	}

	if cfg.Pricing.Enabled {
		opts = append(opts, recommendation.WithPriceSource(pricing.NewClient(&cfg.Pricing)))
	}

	thresholds, issues := cfg.Engine.CategoryThresholds()
	for _, issue := range issues {
		common.LogWarn("低庫存門檻設定無效", zap.Error(issue))
	}
	engine := recommendation.NewEngine(recommendation.Options{
		ExpiryWindowDays:        cfg.Engine.ExpiryWindowDays,
		RecentlyExpiredLookback: cfg.Engine.RecentlyExpiredLookback,
		CategoryThresholds:      thresholds,
		IncludeExpired:          cfg.Engine.IncludeExpiredAlerts,
		Parallelism:             cfg.Engine.Parallelism,
	})
	svc := recommendation.NewService(repo, engine, opts...)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router.Wrap(api.SetupRouter(cfg, svc, m), 2*time.Second),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("addr", srv.Addr),
			zap.Bool("debug", cfg.App.Debug),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			common.LogFatal("Failed to start server", zap.Error(err))
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
		return
	}

	common.LogInfo("Server exited")
}
