package inventory

import (
	"context"
	"net/http"
	"strings"
	"time"

	"brew-planner/internal/api/handlers"
	"brew-planner/internal/core/domain"
	stock "brew-planner/internal/core/inventory"
	recService "brew-planner/internal/core/recommendation"
	"brew-planner/internal/core/units"
	"brew-planner/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Service 庫存處理程序需要的服務
type Service interface {
	Inventory(ctx context.Context, asOf time.Time, f recService.InventoryFilter) ([]recService.InventoryItem, error)
	Stats(ctx context.Context, asOf time.Time, windowDays int) (*recService.Stats, error)
	AddLot(ctx context.Context, rec domain.LotRecord) (domain.InventoryLot, error)
	ConsumeLot(ctx context.Context, lotID string, amount units.Amount, kind domain.MovementType) (domain.InventoryLot, error)
	ConsumeIngredient(ctx context.Context, ingredientID string, amount units.Amount, asOf time.Time) ([]stock.Draw, error)
	Ingredient(ctx context.Context, asOf time.Time, id string) (*recService.IngredientDetail, error)
	Movements(ctx context.Context, ingredientID string) ([]domain.Movement, error)
	Now() time.Time
}

// ConsumeRequest 扣減數量；Type 為 usage（預設）、adjustment 或 expiry
type ConsumeRequest struct {
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit" binding:"required"`
	Type     string  `json:"type"`
}

// ConsumeIngredientRequest 依先到期先出扣減原料
type ConsumeIngredientRequest struct {
	IngredientID string  `json:"ingredientId" binding:"required"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit" binding:"required"`
}

// InventoryResponse 庫存列表
type InventoryResponse struct {
	AsOf  time.Time                  `json:"asOf"`
	Items []recService.InventoryItem `json:"items"`
}

// MovementsResponse 原料異動紀錄
type MovementsResponse struct {
	IngredientID string            `json:"ingredientId"`
	Movements    []domain.Movement `json:"movements"`
}

// ConsumeIngredientResponse 扣減明細
type ConsumeIngredientResponse struct {
	IngredientID string       `json:"ingredientId"`
	Draws        []stock.Draw `json:"draws"`
}

// Handler 庫存處理程序
type Handler struct {
	service Service
	now     func() time.Time
}

// NewHandler 創建庫存處理程序
func NewHandler(service Service) *Handler {
	return &Handler{service: service, now: service.Now}
}

// HandleList 聚合後的庫存列表
func (h *Handler) HandleList(c *gin.Context) {
	asOf, err := handlers.ParseAsOf(c, h.now())
	if err != nil {
		handlers.WriteError(c, err)
		return
	}

	var f recService.InventoryFilter
	if raw := strings.TrimSpace(c.Query("category")); raw != "" {
		category, err := domain.ParseCategory(raw)
		if err != nil {
			handlers.BadRequest(c, err.Error())
			return
		}
		f.Category = category
	}
	f.Search = c.Query("search")

	items, err := h.service.Inventory(c.Request.Context(), asOf, f)
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, InventoryResponse{AsOf: asOf, Items: items})
}

// HandleStats 庫存統計
func (h *Handler) HandleStats(c *gin.Context) {
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

	stats, err := h.service.Stats(c.Request.Context(), asOf, windowDays)
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// HandleIngredient 單一原料的庫存明細
func (h *Handler) HandleIngredient(c *gin.Context) {
	asOf, err := handlers.ParseAsOf(c, h.now())
	if err != nil {
		handlers.WriteError(c, err)
		return
	}

	detail, err := h.service.Ingredient(c.Request.Context(), asOf, c.Param("id"))
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// HandleMovements 原料的入庫與扣減紀錄
func (h *Handler) HandleMovements(c *gin.Context) {
	id := c.Param("id")
	movements, err := h.service.Movements(c.Request.Context(), id)
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, MovementsResponse{IngredientID: id, Movements: movements})
}

// HandleAddLot 入庫
func (h *Handler) HandleAddLot(c *gin.Context) {
	requestID := handlers.RequestID(c)

	var rec domain.LotRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		common.LogWarn("請求格式無效",
			zap.Error(err),
			zap.String("request_id", requestID),
		)
		handlers.BadRequest(c, "invalid request format: ingredientId and unit are required")
		return
	}

	lot, err := h.service.AddLot(c.Request.Context(), rec)
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lot)
}

// HandleConsumeLot 扣減指定批次；會使數量為負時整筆拒絕
func (h *Handler) HandleConsumeLot(c *gin.Context) {
	requestID := handlers.RequestID(c)
	lotID := c.Param("id")

	var req ConsumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.LogWarn("請求格式無效",
			zap.Error(err),
			zap.String("request_id", requestID),
			zap.String("lot", lotID),
		)
		handlers.BadRequest(c, "invalid request format: unit is required")
		return
	}

	kind, err := domain.ParseOutflow(req.Type)
	if err != nil {
		handlers.BadRequest(c, err.Error())
		return
	}

	lot, err := h.service.ConsumeLot(c.Request.Context(), lotID, units.Amount{Quantity: req.Quantity, Unit: req.Unit}, kind)
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, lot)
}

// HandleConsumeIngredient 跨批次扣減原料
func (h *Handler) HandleConsumeIngredient(c *gin.Context) {
	var req ConsumeIngredientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.BadRequest(c, "invalid request format: ingredientId and unit are required")
		return
	}
	asOf, err := handlers.ParseAsOf(c, h.now())
	if err != nil {
		handlers.WriteError(c, err)
		return
	}

	draws, err := h.service.ConsumeIngredient(c.Request.Context(), req.IngredientID,
		units.Amount{Quantity: req.Quantity, Unit: req.Unit}, asOf)
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	if draws == nil {
		draws = []stock.Draw{}
	}
	c.JSON(http.StatusOK, ConsumeIngredientResponse{IngredientID: req.IngredientID, Draws: draws})
}
