package recipe

import (
	"context"
	"net/http"
	"time"

	"brew-planner/internal/api/handlers"
	"brew-planner/internal/core/domain"
	recService "brew-planner/internal/core/recommendation"

	"github.com/gin-gonic/gin"
)

// Service 配方處理程序需要的服務
type Service interface {
	Recipes(ctx context.Context, f recService.RecipeFilter) ([]domain.Recipe, error)
	Recipe(ctx context.Context, asOf time.Time, id string) (*recService.RecipeDetail, error)
	Now() time.Time
}

// ListResponse 配方目錄
type ListResponse struct {
	Recipes []domain.Recipe `json:"recipes"`
}

// DetailResponse 單一配方
type DetailResponse struct {
	AsOf time.Time `json:"asOf"`
	recService.RecipeDetail
}

// Handler 配方處理程序
type Handler struct {
	service Service
	now     func() time.Time
}

// NewHandler 創建配方處理程序
func NewHandler(service Service) *Handler {
	return &Handler{service: service, now: service.Now}
}

// HandleList 列出配方，可依風格與酒精濃度篩選
func (h *Handler) HandleList(c *gin.Context) {
	var (
		f   recService.RecipeFilter
		err error
	)
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

	recipes, err := h.service.Recipes(c.Request.Context(), f)
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Recipes: recipes})
}

// HandleGet 單一配方與其可行性
func (h *Handler) HandleGet(c *gin.Context) {
	asOf, err := handlers.ParseAsOf(c, h.now())
	if err != nil {
		handlers.WriteError(c, err)
		return
	}

	detail, err := h.service.Recipe(c.Request.Context(), asOf, c.Param("id"))
	if err != nil {
		handlers.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, DetailResponse{AsOf: asOf, RecipeDetail: *detail})
}
