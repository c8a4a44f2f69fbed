package api

import (
	"context"
	"net/http"
	"time"

	"brew-planner/internal/api/handlers/health"
	inventoryHandler "brew-planner/internal/api/handlers/inventory"
	recipeHandler "brew-planner/internal/api/handlers/recipe"
	recommendationHandler "brew-planner/internal/api/handlers/recommendation"
	"brew-planner/internal/api/middleware"
	"brew-planner/internal/core/recommendation"
	"brew-planner/internal/infrastructure/config"
	"brew-planner/internal/infrastructure/metrics"
	"brew-planner/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// 超時設置
	timeoutDuration = 30 * time.Second
	// 請求體大小上限預設值 (1MB)
	defaultMaxBodySize = 1 << 20
)

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, svc *recommendation.Service, m *metrics.Metrics) *gin.Engine {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 註冊基礎中間件；Recovery 在日誌與指標之內，panic 也會被記錄為 500
	router.Use(requestid.New())
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics(m))
	router.Use(middleware.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))

	maxBodySize := cfg.Server.MaxBodyBytes
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}
	router.Use(middleware.BodySizeLimit(maxBodySize))

	// 請求超時
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if ctx.Err() == context.DeadlineExceeded && !c.Writer.Written() {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", requestid.Get(c)),
				zap.Duration("timeout", timeoutDuration),
			)
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, common.ErrorResponse{
				Code:    "REQUEST_TIMEOUT",
				Message: "request timeout",
				Details: timeoutDuration.String(),
			})
		}
	})

	// 健康檢查與指標
	healthHandler := health.NewHandler(cfg, svc)
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", healthHandler.LivenessCheck)
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	api := router.Group("/api/v1")
	if cfg.RateLimit.Enabled {
		api.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}
	{
		rec := recommendationHandler.NewHandler(svc)
		recGroup := api.Group("/recommendations")
		{
			recGroup.GET("", rec.HandleRecommendations)
			recGroup.POST("/possible-recipes", rec.HandlePossibleRecipes)
			recGroup.POST("/substitutions", rec.HandleSubstitutions)
			recGroup.GET("/alerts", rec.HandleAlerts)
		}

		rcp := recipeHandler.NewHandler(svc)
		api.GET("/recipes", rcp.HandleList)
		api.GET("/recipes/:id", rcp.HandleGet)

		inv := inventoryHandler.NewHandler(svc)
		invGroup := api.Group("/inventory")
		// 僅寫入路由去重
		invGroup.Use(middleware.Deduplication(cfg.DedupWindow))
		{
			invGroup.GET("", inv.HandleList)
			invGroup.GET("/stats", inv.HandleStats)
			invGroup.GET("/:id", inv.HandleIngredient)
			invGroup.GET("/:id/movements", inv.HandleMovements)
			invGroup.POST("/lots", inv.HandleAddLot)
			invGroup.POST("/lots/:id/consume", inv.HandleConsumeLot)
			invGroup.POST("/consume", inv.HandleConsumeIngredient)
		}
	}

	common.LogInfo("Router setup completed successfully",
		zap.String("store", cfg.Store.Driver),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Duration("timeout", timeoutDuration),
		zap.Int64("max_body_size", maxBodySize),
	)

	return router
}
