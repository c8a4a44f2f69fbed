package recommendation

import (
	"fmt"
	"time"

	"brew-planner/internal/core/alert"
	"brew-planner/internal/core/domain"
	"brew-planner/internal/core/feasibility"
	"brew-planner/internal/core/inventory"
	"brew-planner/internal/core/substitution"
	"brew-planner/internal/core/units"
	"brew-planner/internal/pkg/common"

	"github.com/sourcegraph/conc/iter"
	"go.uber.org/zap"
)

// Options 引擎設定
type Options struct {
	ExpiryWindowDays        int
	RecentlyExpiredLookback time.Duration
	CategoryThresholds      map[domain.Category]units.Amount
	IncludeExpired          bool
	// Parallelism 同時評估的配方數上限
	Parallelism int
}

// Input 單次評估的全部輸入
type Input struct {
	Catalog    domain.Catalog
	Recipes    []domain.Recipe
	Lots       []domain.InventoryLot
	Rules      []domain.SubstitutionRule
	AsOf       time.Time
	WindowDays int
}

// Recommendations 推薦結果
type Recommendations struct {
	PossibleRecipes []feasibility.Result `json:"possibleRecipes"`
	Alerts          []domain.Alert       `json:"alerts"`
	Warnings        []string             `json:"warnings,omitempty"`
}

// Engine 推薦引擎，本身無狀態，可並行呼叫
type Engine struct {
	opts Options
}

// NewEngine 創建推薦引擎
func NewEngine(opts Options) *Engine {
	if opts.ExpiryWindowDays <= 0 {
		opts.ExpiryWindowDays = alert.DefaultWindowDays
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	return &Engine{opts: opts}
}

// Stock 聚合批次；門檻設定錯誤以警告回報
func (e *Engine) Stock(catalog domain.Catalog, lots []domain.InventoryLot, asOf time.Time) (inventory.Stock, []string) {
	policy, issues := inventory.NewCatalogThresholds(catalog, e.opts.CategoryThresholds)
	warnings := make([]string, 0, len(issues))
	for _, err := range issues {
		warnings = append(warnings, err.Error())
	}
	stock := inventory.NewAggregator(e.opts.RecentlyExpiredLookback, policy).Aggregate(lots, asOf)
	return stock, warnings
}

// BuildRecommendations 聚合一次，所有配方與警示共用同一份快照
func (e *Engine) BuildRecommendations(in Input) Recommendations {
	stock, warnings := e.Stock(in.Catalog, in.Lots, in.AsOf)
	results, evalWarnings := e.EvaluateRecipes(in, stock)

	return Recommendations{
		PossibleRecipes: results,
		Alerts:          e.Alerts(in, stock),
		Warnings:        append(warnings, evalWarnings...),
	}
}

// EvaluateRecipes 並行評估所有配方，輸出順序與輸入一致
func (e *Engine) EvaluateRecipes(in Input, stock inventory.Stock) ([]feasibility.Result, []string) {
	evaluator, warnings := feasibility.NewEvaluator(in.Catalog, in.Rules)

	mapper := iter.Mapper[domain.Recipe, feasibility.Result]{MaxGoroutines: e.opts.Parallelism}
	results := mapper.Map(in.Recipes, func(r *domain.Recipe) (res feasibility.Result) {
		defer func() {
			if p := recover(); p != nil {
				common.LogError("配方評估失敗", zap.String("recipe", r.ID), zap.Any("panic", p))
				res = feasibility.Result{
					RecipeID:      r.ID,
					Name:          r.Name,
					Style:         r.Style,
					Shortfalls:    []feasibility.Shortfall{},
					OptionalGaps:  []feasibility.OptionalGap{},
					Substitutions: []feasibility.AppliedSubstitution{},
					Error:         fmt.Sprintf("evaluation failed: %v", p),
				}
			}
		}()
		return evaluator.Evaluate(*r, stock)
	})
	if results == nil {
		results = []feasibility.Result{}
	}
	return results, warnings
}

// Alerts 產生庫存警示
func (e *Engine) Alerts(in Input, stock inventory.Stock) []domain.Alert {
	g := alert.NewGenerator(alert.Options{
		DefaultWindowDays: e.opts.ExpiryWindowDays,
		IncludeExpired:    e.opts.IncludeExpired,
		Names:             in.Catalog.Name,
	})
	return g.Generate(stock, in.AsOf, in.WindowDays)
}

// WindowDays 解析請求的到期天數
func (e *Engine) WindowDays(requested int) int {
	if requested > 0 {
		return requested
	}
	return e.opts.ExpiryWindowDays
}

// SubstitutionReport 單一原料的替代查詢結果
type SubstitutionReport struct {
	IngredientID   string                          `json:"ingredientId"`
	IngredientName string                          `json:"ingredientName,omitempty"`
	BaseUnit       string                          `json:"baseUnit"`
	Required       units.BaseQuantity              `json:"required"`
	Available      units.BaseQuantity              `json:"available"`
	Deficit        units.BaseQuantity              `json:"deficit"`
	Covered        units.BaseQuantity              `json:"covered"`
	FullyCovered   bool                            `json:"fullyCovered"`
	Candidates     []substitution.RankedSubstitute `json:"candidates"`
}

// Substitutions 查詢某原料在指定數量下的替代方案；庫存足夠時仍列出候選
func (e *Engine) Substitutions(in Input, ingredientID string, amount units.Amount) (*SubstitutionReport, error) {
	ing, ok := in.Catalog.Lookup(ingredientID)
	if !ok {
		return nil, common.NewNotFoundError("ingredient", ingredientID, "")
	}
	required, err := amount.Normalize(ing.BaseUnit)
	if err != nil {
		return nil, err
	}

	stock, _ := e.Stock(in.Catalog, in.Lots, in.AsOf)
	available := stock.Available(ingredientID)
	deficit := max(required-available, 0)

	outcome := substitution.Resolve(ingredientID, deficit, stock, substitution.NewIndex(in.Rules), nil)
	return &SubstitutionReport{
		IngredientID:   ingredientID,
		IngredientName: ing.Name,
		BaseUnit:       ing.BaseUnit.BaseUnit(),
		Required:       required,
		Available:      available,
		Deficit:        deficit,
		Covered:        outcome.Covered,
		FullyCovered:   outcome.FullyCovered(deficit),
		Candidates:     outcome.Candidates,
	}, nil
}
