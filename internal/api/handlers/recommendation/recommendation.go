package recommendation

import (
	"context"
	"net/http"
	"time"

	"brew-planner/internal/api/handlers"
	"brew-planner/internal/core/domain"
	"brew-planner/internal/core/feasibility"
	recService "brew-planner/internal/core/recommendation"
	"brew-planner/internal/core/units"
	"brew-planner/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Service 推薦處理程序需要的服務
type Service interface {
	PossibleRecipes(ctx context.Context, asOf time.Time, f recService.RecipeFilter) ([]feasibility.Result, error)
	Alerts(ctx context.Context, asOf time.Time, windowDays int) ([]domain.Alert, error)
	Substitutions(ctx context.Context, asOf time.Time, ingredientID string, amount units.Amount) (*recService.SubstitutionReport, error)
	Recommendations(ctx context.Context, asOf time.Time, windowDays int) (*recService.Recommendations, error)
	WindowDays(requested int) int
	Now() time.Time
}

// SubstitutionRequest 單一原料替代查詢
type SubstitutionRequest struct {
	IngredientID string  `json:"ingredientId" binding:"required"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit" binding:"required"`
}

// PossibleRecipesResponse 配方可行性列表，順序與配方目錄一致
type PossibleRecipesResponse struct {
	AsOf    time.Time            `json:"asOf"`
	Recipes []feasibility.Result `json:"recipes"`
}

// AlertsResponse 庫存警示
type AlertsResponse struct {
	AsOf       time.Time      `json:"asOf"`
	WindowDays int            `json:"windowDays"`
	Alerts     []domain.Alert `json:"alerts"`
}

// RecommendationsResponse 配方評估與警示的合併結果
type RecommendationsResponse struct {
	AsOf       time.Time `json:"asOf"`
	WindowDays int       `json:"windowDays"`
	recService.Recommendations
}

// Handler 推薦處理程序
type Handler struct {
	service Service
	now     func() time.Time
}

// NewHandler 創建推薦處理程序
func NewHandler(service Service) *Handler {
	return &Handler{service: service, now: service.Now}
}

// HandlePossibleRecipes 評估所有配方是否可釀造
func (h *Handler) HandlePossibleRecipes(c *gin.Context) {
	requestID := handlers.RequestID(c)

	asOf, err := handlers.ParseAsOf(c, h.now())
	if err != nil {
		handlers.WriteError(c, err)
		return
	}

	var f recService.RecipeFilter
	if f.AvailableOnly, err = handlers.QueryBool(c, "available_only"); err != nil {
		handlers.WriteError(c, err)
		return
	}
	if f.ABVMin, err = handlers.QueryFloat(c, "abv_min"); err != nil {
		handlers.WriteError(c, err)
		return
	}
	if f.ABVMax, err = handlers.QueryFloat(c, "abv_max"); err != nil {
		handlers.WriteError(c, err)
		return
	}
	if f.ABVMin != nil && f.ABVMax != nil && *f.ABVMin > *f.ABVMax {
		handlers.BadRequest(c, "abv_min must not exceed abv_max")
		return
	}
	f.Style = c.Query("style")

	results, err := h.service.PossibleRecipes(c.Request.Context(), asOf, f)
	if err != nil {
		handlers.WriteError(c, err)
		return
	}

	common.LogDebug("配方評估完成",
		zap.String("request_id", requestID),
		zap.Int("recipes", len(results)),
		zap.Bool("available_only", f.AvailableOnly),
	)
	c.JSON(http.StatusOK, PossibleRecipesResponse{AsOf: asOf, Recipes: results})
}

// HandleSubstitutions 查詢單一原料的替代方案
func (h *Handler) HandleSubstitutions(c *gin.Context) {
	requestID := handlers.RequestID(c)

	var req SubstitutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.LogWarn("請求格式無效",
			zap.Error(err),
			zap.String("request_id", requestID),
		)
		handlers.BadRequest(c, "invalid request format: ingredientId and unit are required")
		return
	}

	asOf, err := handlers.ParseAsOf(c, h.now())
	if err != nil {
		handlers.WriteError(c, err)
		return
	}

	report, err := h.service.Substitutions(c.Request.Context(), asOf, req.IngredientID,
		units.Amount{Quantity: req.Quantity, Unit: req.Unit})
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// HandleAlerts 低庫存與即將到期警示
func (h *Handler) HandleAlerts(c *gin.Context) {
	asOf, err := handlers.ParseAsOf(c, h.now())
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	windowDays, err := handlers.QueryInt(c, "windowDays")
	if err != nil {
		handlers.WriteError(c, err)
		return
	}

	alerts, err := h.service.Alerts(c.Request.Context(), asOf, windowDays)
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, AlertsResponse{AsOf: asOf, WindowDays: h.service.WindowDays(windowDays), Alerts: alerts})
}

// HandleRecommendations 同一快照下的配方評估與警示
func (h *Handler) HandleRecommendations(c *gin.Context) {
	asOf, err := handlers.ParseAsOf(c, h.now())
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	windowDays, err := handlers.QueryInt(c, "windowDays")
	if err != nil {
		handlers.WriteError(c, err)
		return
	}

	rec, err := h.service.Recommendations(c.Request.Context(), asOf, windowDays)
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, RecommendationsResponse{
		AsOf:            asOf,
		WindowDays:      h.service.WindowDays(windowDays),
		Recommendations: *rec,
	})
}
