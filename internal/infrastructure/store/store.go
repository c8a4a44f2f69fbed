package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"brew-planner/internal/core/domain"
	"brew-planner/internal/core/inventory"
	"brew-planner/internal/core/units"
	"brew-planner/internal/infrastructure/config"
	"brew-planner/internal/pkg/common"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Snapshot 某一版本的完整資料，評估期間唯讀
type Snapshot struct {
	Version     uint64
	Ingredients []domain.Ingredient
	Lots        []domain.InventoryLot
	Recipes     []domain.Recipe
	Rules       []domain.SubstitutionRule
	// Prices 每公斤、每公升或每個的單價
	Prices map[string]decimal.Decimal
}

// Catalog 原料目錄
func (s *Snapshot) Catalog() domain.Catalog {
	return domain.NewCatalog(s.Ingredients)
}

// Repository 原料、批次、配方與替代規則的資料來源。
// 每次寫入都會遞增版本，快取以版本作為鍵的一部分。
type Repository interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
	Version(ctx context.Context) (uint64, error)
	// AddLot 入庫並轉換為基本單位
	AddLot(ctx context.Context, rec domain.LotRecord) (domain.InventoryLot, error)
	// ConsumeLot 扣減指定批次，不足時整筆拒絕；kind 為 usage、adjustment 或 expiry
	ConsumeLot(ctx context.Context, lotID string, amount units.Amount, kind domain.MovementType) (domain.InventoryLot, error)
	// ConsumeIngredient 依先到期先出的順序跨批次扣減，記錄為 usage
	ConsumeIngredient(ctx context.Context, ingredientID string, amount units.Amount, asOf time.Time) ([]inventory.Draw, error)
	// Movements 原料的異動紀錄，依時間與 id 排序
	Movements(ctx context.Context, ingredientID string) ([]domain.Movement, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open 依設定開啟資料來源，並在資料為空時載入種子檔
func Open(cfg config.StoreConfig) (Repository, error) {
	var seed *Seed
	if cfg.SeedFile != "" {
		s, err := LoadSeed(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		seed = s
		common.LogInfo("種子資料已載入",
			zap.String("file", cfg.SeedFile),
			zap.Int("ingredients", len(s.Ingredients)),
			zap.Int("lots", len(s.Lots)),
			zap.Int("recipes", len(s.Recipes)),
		)
	}

	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(seed)
	case "sqlite3", "postgres", "mysql":
		s, err := NewGormStore(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if seed != nil {
			if err := s.SeedIfEmpty(context.Background(), seed); err != nil {
				s.Close()
				return nil, err
			}
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// prepareLot 驗證並轉換入庫批次
func prepareLot(catalog domain.Catalog, rec domain.LotRecord, now time.Time) (domain.InventoryLot, error) {
	if rec.ID == "" {
		rec.ID = common.NewLotID()
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = now
	}
	if err := rec.Validate(); err != nil {
		return domain.InventoryLot{}, common.NewValidationError(err.Error())
	}
	ing, ok := catalog.Lookup(rec.IngredientID)
	if !ok {
		return domain.InventoryLot{}, common.NewNotFoundError("ingredient", rec.IngredientID, "lot "+rec.ID)
	}
	return domain.NewInventoryLot(rec, ing)
}

// checkOutflow 扣減原因不可為 purchase；空值視為 usage
func checkOutflow(kind domain.MovementType) (domain.MovementType, error) {
	parsed, err := domain.ParseOutflow(string(kind))
	if err != nil {
		return "", common.NewValidationError(err.Error())
	}
	return parsed, nil
}

// sortMovements 依時間與 id 排序
func sortMovements(ms []domain.Movement) {
	sort.SliceStable(ms, func(i, j int) bool {
		if !ms[i].OccurredAt.Equal(ms[j].OccurredAt) {
			return ms[i].OccurredAt.Before(ms[j].OccurredAt)
		}
		return ms[i].ID < ms[j].ID
	})
}

// normalizeFor 將數量轉換為原料的基本單位
func normalizeFor(catalog domain.Catalog, ingredientID string, amount units.Amount) (units.BaseQuantity, error) {
	ing, ok := catalog.Lookup(ingredientID)
	if !ok {
		return 0, common.NewNotFoundError("ingredient", ingredientID, "")
	}
	return amount.Normalize(ing.BaseUnit)
}
