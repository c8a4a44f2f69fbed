package recommendation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"brew-planner/internal/core/cache"
	"brew-planner/internal/core/domain"
	"brew-planner/internal/core/feasibility"
	"brew-planner/internal/core/inventory"
	"brew-planner/internal/core/units"
	"brew-planner/internal/infrastructure/metrics"
	"brew-planner/internal/infrastructure/store"
	"brew-planner/internal/pkg/common"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PriceSource 外部單價來源
type PriceSource interface {
	UnitPrices(ctx context.Context, ingredientIDs []string) (map[string]decimal.Decimal, error)
}

// RecipeFilter 配方篩選；風格與酒精濃度在評估前套用，AvailableOnly 在評估後套用
type RecipeFilter struct {
	AvailableOnly bool
	Style         string
	ABVMin        *float64
	ABVMax        *float64
}

func (f RecipeFilter) match(r domain.Recipe) bool {
	if f.Style != "" && !strings.EqualFold(r.Style, f.Style) {
		return false
	}
	if f.ABVMin != nil && r.ABV < *f.ABVMin {
		return false
	}
	if f.ABVMax != nil && r.ABV > *f.ABVMax {
		return false
	}
	return true
}

func (f RecipeFilter) key() string {
	bound := func(p *float64) string {
		if p == nil {
			return "-"
		}
		return strconv.FormatFloat(*p, 'f', -1, 64)
	}
	return fmt.Sprintf("%t|%s|%s|%s", f.AvailableOnly, strings.ToLower(f.Style), bound(f.ABVMin), bound(f.ABVMax))
}

// Service 推薦服務：讀取快照、套用篩選、快取結果並記錄指標
type Service struct {
	repo    store.Repository
	engine  *Engine
	cache   cache.Cache
	prices  PriceSource
	metrics *metrics.Metrics
	bucket  time.Duration
	now     func() time.Time
}

// ServiceOption 可選元件
type ServiceOption func(*Service)

// WithCache 啟用結果快取；bucket 為未指定評估時點時「現在」的截斷粒度
func WithCache(c cache.Cache, bucket time.Duration) ServiceOption {
	return func(s *Service) {
		s.cache = c
		s.bucket = bucket
	}
}

// WithPriceSource 使用外部單價覆寫資料庫中的單價
func WithPriceSource(p PriceSource) ServiceOption {
	return func(s *Service) { s.prices = p }
}

// WithMetrics 記錄 prometheus 指標
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService 創建推薦服務
func NewService(repo store.Repository, engine *Engine, opts ...ServiceOption) *Service {
	s := &Service{repo: repo, engine: engine, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PossibleRecipes 評估所有符合篩選的配方，順序與目錄一致
func (s *Service) PossibleRecipes(ctx context.Context, asOf time.Time, f RecipeFilter) ([]feasibility.Result, error) {
	defer s.metrics.ObserveEvaluation("possible_recipes", time.Now())

	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var results []feasibility.Result
	key := cache.Key("recipes", snap.Version, asOf, f.key())
	if s.cached(ctx, key, &results) {
		return results, nil
	}

	in := s.input(snap, asOf, 0)
	filtered := make([]domain.Recipe, 0, len(snap.Recipes))
	for _, r := range snap.Recipes {
		if f.match(r) {
			filtered = append(filtered, r)
		}
	}
	in.Recipes = filtered

	start := time.Now()
	stock, warnings := s.engine.Stock(in.Catalog, in.Lots, asOf)
	evaluated, evalWarnings := s.engine.EvaluateRecipes(in, stock)
	s.logWarnings(append(warnings, evalWarnings...))

	results = make([]feasibility.Result, 0, len(evaluated))
	brewable := 0
	for _, r := range evaluated {
		s.metrics.CountRecipe(r.CanBrew)
		if r.CanBrew {
			brewable++
		}
		if f.AvailableOnly && !r.CanBrew {
			continue
		}
		results = append(results, r)
	}
	common.LogEngineRun(len(evaluated), brewable, 0, time.Since(start), snap.Version)

	s.save(ctx, key, results)
	return results, nil
}

// Alerts 產生庫存警示
func (s *Service) Alerts(ctx context.Context, asOf time.Time, windowDays int) ([]domain.Alert, error) {
	defer s.metrics.ObserveEvaluation("alerts", time.Now())

	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	window := s.engine.WindowDays(windowDays)

	var alerts []domain.Alert
	key := cache.Key("alerts", snap.Version, asOf, strconv.Itoa(window))
	if s.cached(ctx, key, &alerts) {
		return alerts, nil
	}

	in := s.input(snap, asOf, window)
	stock, warnings := s.engine.Stock(in.Catalog, in.Lots, asOf)
	s.logWarnings(warnings)
	alerts = s.engine.Alerts(in, stock)
	for _, a := range alerts {
		s.metrics.CountAlert(string(a.Kind))
	}

	s.save(ctx, key, alerts)
	return alerts, nil
}

// Recommendations 一次回傳配方評估與警示，兩者基於同一份快照
func (s *Service) Recommendations(ctx context.Context, asOf time.Time, windowDays int) (*Recommendations, error) {
	defer s.metrics.ObserveEvaluation("recommendations", time.Now())

	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	window := s.engine.WindowDays(windowDays)

	var rec Recommendations
	key := cache.Key("recommendations", snap.Version, asOf, strconv.Itoa(window))
	if s.cached(ctx, key, &rec) {
		return &rec, nil
	}

	start := time.Now()
	rec = s.engine.BuildRecommendations(s.input(snap, asOf, window))
	s.logWarnings(rec.Warnings)

	brewable := 0
	for _, r := range rec.PossibleRecipes {
		s.metrics.CountRecipe(r.CanBrew)
		if r.CanBrew {
			brewable++
		}
	}
	for _, a := range rec.Alerts {
		s.metrics.CountAlert(string(a.Kind))
	}
	common.LogEngineRun(len(rec.PossibleRecipes), brewable, len(rec.Alerts), time.Since(start), snap.Version)

	s.save(ctx, key, rec)
	return &rec, nil
}

// Substitutions 單一原料的替代查詢
func (s *Service) Substitutions(ctx context.Context, asOf time.Time, ingredientID string, amount units.Amount) (*SubstitutionReport, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.engine.Substitutions(s.input(snap, asOf, 0), ingredientID, amount)
}

// Inventory 庫存列表
func (s *Service) Inventory(ctx context.Context, asOf time.Time, f InventoryFilter) ([]InventoryItem, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	catalog := snap.Catalog()
	stock, _ := s.engine.Stock(catalog, snap.Lots, asOf)
	return InventoryView(catalog, stock, f), nil
}

// Stats 庫存統計；外部單價不可用時沿用資料庫中的單價
func (s *Service) Stats(ctx context.Context, asOf time.Time, windowDays int) (*Stats, error) {
	defer s.metrics.ObserveEvaluation("stats", time.Now())

	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	window := s.engine.WindowDays(windowDays)

	var stats Stats
	key := cache.Key("stats", snap.Version, asOf, strconv.Itoa(window))
	if s.cached(ctx, key, &stats) {
		return &stats, nil
	}

	catalog := snap.Catalog()
	stock, _ := s.engine.Stock(catalog, snap.Lots, asOf)
	stats = ComputeStats(stock, s.unitPrices(ctx, snap), asOf, window)

	s.save(ctx, key, stats)
	return &stats, nil
}

// AddLot 入庫
func (s *Service) AddLot(ctx context.Context, rec domain.LotRecord) (domain.InventoryLot, error) {
	lot, err := s.repo.AddLot(ctx, rec)
	s.metrics.CountWrite("add_lot", err)
	if err != nil {
		return domain.InventoryLot{}, err
	}
	common.LogInfo("批次已入庫", zap.String("lot", lot.ID), zap.String("ingredient", lot.IngredientID))
	return lot, nil
}

// ConsumeLot 扣減指定批次
func (s *Service) ConsumeLot(ctx context.Context, lotID string, amount units.Amount, kind domain.MovementType) (domain.InventoryLot, error) {
	lot, err := s.repo.ConsumeLot(ctx, lotID, amount, kind)
	s.metrics.CountWrite("consume_lot", err)
	if err != nil {
		return domain.InventoryLot{}, err
	}
	common.LogInfo("批次已扣減",
		zap.String("lot", lot.ID),
		zap.String("type", string(kind)),
		zap.Int64("remaining", int64(lot.QuantityRemaining)),
	)
	return lot, nil
}

// ConsumeIngredient 依先到期先出扣減原料
func (s *Service) ConsumeIngredient(ctx context.Context, ingredientID string, amount units.Amount, asOf time.Time) ([]inventory.Draw, error) {
	draws, err := s.repo.ConsumeIngredient(ctx, ingredientID, amount, asOf)
	s.metrics.CountWrite("consume_ingredient", err)
	if err != nil {
		return nil, err
	}
	common.LogInfo("原料已扣減", zap.String("ingredient", ingredientID), zap.Int("lots", len(draws)))
	return draws, nil
}

// Now 未指定評估時點時使用的「現在」，啟用快取時截斷到 bucket，
// 同一時間桶內的請求因此共用同一個評估時點與快取條目
func (s *Service) Now() time.Time {
	now := s.now()
	if s.bucket > 0 {
		return now.Truncate(s.bucket)
	}
	return now
}

// Movements 原料的異動紀錄
func (s *Service) Movements(ctx context.Context, ingredientID string) ([]domain.Movement, error) {
	return s.repo.Movements(ctx, ingredientID)
}

// Recipes 符合篩選的配方目錄，順序與目錄一致；AvailableOnly 不適用
func (s *Service) Recipes(ctx context.Context, f RecipeFilter) ([]domain.Recipe, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	recipes := []domain.Recipe{}
	for _, r := range snap.Recipes {
		if f.match(r) {
			recipes = append(recipes, r)
		}
	}
	return recipes, nil
}

// RecipeDetail 配方內容與在評估時點的可行性
type RecipeDetail struct {
	Recipe      domain.Recipe      `json:"recipe"`
	Feasibility feasibility.Result `json:"feasibility"`
}

// Recipe 單一配方
func (s *Service) Recipe(ctx context.Context, asOf time.Time, id string) (*RecipeDetail, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range snap.Recipes {
		if r.ID != id {
			continue
		}
		in := s.input(snap, asOf, 0)
		in.Recipes = []domain.Recipe{r}
		stock, warnings := s.engine.Stock(in.Catalog, in.Lots, asOf)
		results, evalWarnings := s.engine.EvaluateRecipes(in, stock)
		s.logWarnings(append(warnings, evalWarnings...))
		return &RecipeDetail{Recipe: r, Feasibility: results[0]}, nil
	}
	return nil, common.NewNotFoundError("recipe", id, "")
}

// Ingredient 單一原料的庫存明細
func (s *Service) Ingredient(ctx context.Context, asOf time.Time, id string) (*IngredientDetail, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	catalog := snap.Catalog()
	ing, ok := catalog.Lookup(id)
	if !ok {
		return nil, common.NewNotFoundError("ingredient", id, "")
	}
	stock, _ := s.engine.Stock(catalog, snap.Lots, asOf)
	detail := IngredientView(ing, stock, s.unitPrices(ctx, snap))
	return &detail, nil
}

// WindowDays 實際使用的到期天數
func (s *Service) WindowDays(requested int) int {
	return s.engine.WindowDays(requested)
}

// Ready 檢查資料來源
func (s *Service) Ready(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// CacheStats 快取統計，未啟用時為 nil
func (s *Service) CacheStats() map[string]interface{} {
	if s.cache == nil {
		return nil
	}
	return s.cache.GetStats()
}

func (s *Service) snapshot(ctx context.Context) (*store.Snapshot, error) {
	snap, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, common.ErrServiceUnavailable.Wrap(err)
	}
	s.metrics.SetVersion(snap.Version)
	return snap, nil
}

func (s *Service) input(snap *store.Snapshot, asOf time.Time, windowDays int) Input {
	return Input{
		Catalog:    snap.Catalog(),
		Recipes:    snap.Recipes,
		Lots:       snap.Lots,
		Rules:      snap.Rules,
		AsOf:       asOf,
		WindowDays: windowDays,
	}
}

func (s *Service) unitPrices(ctx context.Context, snap *store.Snapshot) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(snap.Prices))
	for id, p := range snap.Prices {
		prices[id] = p
	}
	if s.prices == nil {
		return prices
	}

	ids := make([]string, 0, len(snap.Ingredients))
	for _, ing := range snap.Ingredients {
		ids = append(ids, ing.ID)
	}
	external, err := s.prices.UnitPrices(ctx, ids)
	if err != nil {
		common.LogWarn("外部單價不可用，改用資料庫單價", zap.Error(err))
		return prices
	}
	for id, p := range external {
		prices[id] = p
	}
	return prices
}

// cached 讀取快取；任何錯誤都視為未命中
func (s *Service) cached(ctx context.Context, key string, v interface{}) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, common.ErrCacheMiss) {
			s.metrics.CountCache("miss")
		} else {
			s.metrics.CountCache("error")
			common.LogWarn("快取讀取失敗", zap.String("鍵", key), zap.Error(err))
		}
		return false
	}
	if err := common.ParseJSONBytes(data, v); err != nil {
		s.metrics.CountCache("error")
		return false
	}
	s.metrics.CountCache("hit")
	return true
}

func (s *Service) save(ctx context.Context, key string, v interface{}) {
	if s.cache == nil {
		return
	}
	data, err := common.ToJSON(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data); err != nil {
		common.LogWarn("快取寫入失敗", zap.String("鍵", key), zap.Error(err))
	}
}

func (s *Service) logWarnings(warnings []string) {
	for _, w := range warnings {
		common.LogWarn("資料完整性警告", zap.String("detail", w))
	}
}
