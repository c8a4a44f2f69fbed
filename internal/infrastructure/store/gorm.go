package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"brew-planner/internal/core/domain"
	"brew-planner/internal/core/inventory"
	"brew-planner/internal/core/units"
	"brew-planner/internal/pkg/common"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/jinzhu/gorm"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const versionKey = "snapshot_version"

type ingredientModel struct {
	ID                string `gorm:"primary_key"`
	Position          int
	Name              string
	Category          string
	BaseUnit          string
	ThresholdQuantity *float64
	ThresholdUnit     string
}

func (ingredientModel) TableName() string { return "ingredients" }

type lotModel struct {
	ID                string `gorm:"primary_key"`
	IngredientID      string `gorm:"index"`
	QuantityRemaining int64
	Unit              string
	ReceivedAt        time.Time
	ExpiresAt         *time.Time
	Supplier          string
}

func (lotModel) TableName() string { return "inventory_lots" }

type recipeModel struct {
	ID               string `gorm:"primary_key"`
	Position         int
	Name             string
	Style            string
	BatchSizeLiters  float64
	ABV              float64
	IBU              float64
	RequirementsJSON string `gorm:"type:text"`
}

func (recipeModel) TableName() string { return "recipes" }

type ruleModel struct {
	ID               uint `gorm:"primary_key"`
	FromIngredientID string
	ToIngredientID   string
	ConversionRatio  float64
	SuitabilityScore float64
}

func (ruleModel) TableName() string { return "substitution_rules" }

type priceModel struct {
	IngredientID string `gorm:"primary_key"`
	UnitPrice    string
}

func (priceModel) TableName() string { return "unit_prices" }

type movementModel struct {
	ID           string `gorm:"primary_key"`
	IngredientID string `gorm:"index"`
	LotID        string
	Type         string
	Quantity     int64
	OccurredAt   time.Time
}

func (movementModel) TableName() string { return "inventory_movements" }

func (m movementModel) toDomain() domain.Movement {
	return domain.Movement{ID: m.ID, IngredientID: m.IngredientID, LotID: m.LotID,
		Type: domain.MovementType(m.Type), Quantity: units.BaseQuantity(m.Quantity), OccurredAt: m.OccurredAt}
}

func toMovementModel(mv domain.Movement) *movementModel {
	return &movementModel{ID: mv.ID, IngredientID: mv.IngredientID, LotID: mv.LotID,
		Type: string(mv.Type), Quantity: int64(mv.Quantity), OccurredAt: mv.OccurredAt}
}

type metaModel struct {
	Name  string `gorm:"primary_key"`
	Value int64
}

func (metaModel) TableName() string { return "store_meta" }

// GormStore SQL 資料來源（sqlite3 / postgres / mysql）
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore 開啟資料庫連線並建立資料表
func NewGormStore(driver, dsn string) (*GormStore, error) {
	db, err := gorm.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}
	if driver == "sqlite3" {
		// sqlite 只允許單一寫入者
		db.DB().SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&ingredientModel{}, &lotModel{}, &recipeModel{}, &ruleModel{}, &priceModel{}, &movementModel{}, &metaModel{}).Error; err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	if err := db.Where(metaModel{Name: versionKey}).Attrs(metaModel{Value: 1}).FirstOrCreate(&metaModel{}).Error; err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init version: %w", err)
	}

	common.LogInfo("資料庫已連線", zap.String("driver", driver))
	return &GormStore{db: db, now: time.Now}, nil
}

// SeedIfEmpty 資料表為空時寫入種子資料
func (s *GormStore) SeedIfEmpty(ctx context.Context, seed *Seed) error {
	var count int
	if err := s.db.Model(&ingredientModel{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	snap, err := seed.Build(s.now())
	if err != nil {
		return err
	}

	return s.transaction(func(tx *gorm.DB) error {
		for i, ing := range snap.Ingredients {
			m := ingredientModel{ID: ing.ID, Position: i, Name: ing.Name, Category: string(ing.Category), BaseUnit: string(ing.BaseUnit)}
			if ing.LowStockThreshold != nil {
				q := ing.LowStockThreshold.Quantity
				m.ThresholdQuantity = &q
				m.ThresholdUnit = ing.LowStockThreshold.Unit
			}
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
		}
		for _, lot := range snap.Lots {
			if err := tx.Create(toLotModel(lot)).Error; err != nil {
				return err
			}
			if err := tx.Create(toMovementModel(domain.Purchase(common.NewMovementID(), lot, lot.ReceivedAt))).Error; err != nil {
				return err
			}
		}
		for i, r := range snap.Recipes {
			reqs, err := json.Marshal(r.Requirements)
			if err != nil {
				return err
			}
			m := recipeModel{ID: r.ID, Position: i, Name: r.Name, Style: r.Style,
				BatchSizeLiters: r.BatchSizeLiters, ABV: r.ABV, IBU: r.IBU, RequirementsJSON: string(reqs)}
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
		}
		for _, r := range snap.Rules {
			m := ruleModel{FromIngredientID: r.FromIngredientID, ToIngredientID: r.ToIngredientID,
				ConversionRatio: r.ConversionRatio, SuitabilityScore: r.SuitabilityScore}
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
		}
		for id, p := range snap.Prices {
			if err := tx.Create(&priceModel{IngredientID: id, UnitPrice: p.String()}).Error; err != nil {
				return err
			}
		}
		return bumpVersion(tx)
	})
}

// Snapshot 在同一交易中讀取版本與全部資料
func (s *GormStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{Prices: map[string]decimal.Decimal{}}
	err := s.transaction(func(tx *gorm.DB) error {
		v, err := readVersion(tx)
		if err != nil {
			return err
		}
		snap.Version = v

		var ings []ingredientModel
		if err := tx.Order("position").Find(&ings).Error; err != nil {
			return err
		}
		for _, m := range ings {
			ing := domain.Ingredient{ID: m.ID, Name: m.Name, Category: domain.Category(m.Category), BaseUnit: units.Dimension(m.BaseUnit)}
			if m.ThresholdQuantity != nil {
				ing.LowStockThreshold = &units.Amount{Quantity: *m.ThresholdQuantity, Unit: m.ThresholdUnit}
			}
			snap.Ingredients = append(snap.Ingredients, ing)
		}

		var lots []lotModel
		if err := tx.Order("id").Find(&lots).Error; err != nil {
			return err
		}
		for _, m := range lots {
			snap.Lots = append(snap.Lots, m.toDomain())
		}

		var recipes []recipeModel
		if err := tx.Order("position").Find(&recipes).Error; err != nil {
			return err
		}
		for _, m := range recipes {
			r := domain.Recipe{ID: m.ID, Name: m.Name, Style: m.Style, BatchSizeLiters: m.BatchSizeLiters, ABV: m.ABV, IBU: m.IBU}
			if m.RequirementsJSON != "" {
				if err := json.Unmarshal([]byte(m.RequirementsJSON), &r.Requirements); err != nil {
					return fmt.Errorf("recipe %s: %w", m.ID, err)
				}
			}
			snap.Recipes = append(snap.Recipes, r)
		}

		var rules []ruleModel
		if err := tx.Order("id").Find(&rules).Error; err != nil {
			return err
		}
		for _, m := range rules {
			snap.Rules = append(snap.Rules, domain.SubstitutionRule{FromIngredientID: m.FromIngredientID,
				ToIngredientID: m.ToIngredientID, ConversionRatio: m.ConversionRatio, SuitabilityScore: m.SuitabilityScore})
		}

		var prices []priceModel
		if err := tx.Find(&prices).Error; err != nil {
			return err
		}
		for _, m := range prices {
			d, err := decimal.NewFromString(m.UnitPrice)
			if err != nil {
				common.LogWarn("略過無效單價", zap.String("ingredient", m.IngredientID), zap.Error(err))
				continue
			}
			snap.Prices[m.IngredientID] = d
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return snap, nil
}

// Version 目前版本
func (s *GormStore) Version(ctx context.Context) (uint64, error) {
	return readVersion(s.db)
}

// AddLot 新增批次
func (s *GormStore) AddLot(ctx context.Context, rec domain.LotRecord) (domain.InventoryLot, error) {
	var lot domain.InventoryLot
	err := s.transaction(func(tx *gorm.DB) error {
		catalog, err := s.catalog(tx, rec.IngredientID)
		if err != nil {
			return err
		}
		lot, err = prepareLot(catalog, rec, s.now())
		if err != nil {
			return err
		}
		var count int
		if err := tx.Model(&lotModel{}).Where("id = ?", lot.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return common.ErrConflict.Wrap(fmt.Errorf("lot %s already exists", lot.ID))
		}
		if err := tx.Create(toLotModel(lot)).Error; err != nil {
			return err
		}
		if err := tx.Create(toMovementModel(domain.Purchase(common.NewMovementID(), lot, s.now()))).Error; err != nil {
			return err
		}
		return bumpVersion(tx)
	})
	return lot, err
}

// ConsumeLot 扣減指定批次
func (s *GormStore) ConsumeLot(ctx context.Context, lotID string, amount units.Amount, kind domain.MovementType) (domain.InventoryLot, error) {
	kind, err := checkOutflow(kind)
	if err != nil {
		return domain.InventoryLot{}, err
	}

	var updated domain.InventoryLot
	err = s.transaction(func(tx *gorm.DB) error {
		var m lotModel
		if err := tx.Where("id = ?", lotID).First(&m).Error; err != nil {
			if gorm.IsRecordNotFoundError(err) {
				return common.NewNotFoundError("lot", lotID, "")
			}
			return err
		}
		catalog, err := s.catalog(tx, m.IngredientID)
		if err != nil {
			return err
		}
		q, err := normalizeFor(catalog, m.IngredientID, amount)
		if err != nil {
			return err
		}
		updated, err = m.toDomain().Consume(q)
		if err != nil {
			return err
		}
		if err := compareAndSet(tx, m.ID, m.QuantityRemaining, int64(updated.QuantityRemaining)); err != nil {
			return err
		}
		mv := domain.Outflow(common.NewMovementID(), kind, m.IngredientID, m.ID, q, s.now())
		if err := tx.Create(toMovementModel(mv)).Error; err != nil {
			return err
		}
		return bumpVersion(tx)
	})
	return updated, err
}

// ConsumeIngredient 依先到期先出扣減
func (s *GormStore) ConsumeIngredient(ctx context.Context, ingredientID string, amount units.Amount, asOf time.Time) ([]inventory.Draw, error) {
	var draws []inventory.Draw
	err := s.transaction(func(tx *gorm.DB) error {
		catalog, err := s.catalog(tx, ingredientID)
		if err != nil {
			return err
		}
		q, err := normalizeFor(catalog, ingredientID, amount)
		if err != nil {
			return err
		}

		var rows []lotModel
		if err := tx.Where("ingredient_id = ?", ingredientID).Order("id").Find(&rows).Error; err != nil {
			return err
		}
		lots := make([]domain.InventoryLot, len(rows))
		before := make(map[string]int64, len(rows))
		for i, m := range rows {
			lots[i] = m.toDomain()
			before[m.ID] = m.QuantityRemaining
		}

		updated, d, err := inventory.ConsumeFEFO(lots, ingredientID, q, asOf)
		if err != nil {
			return err
		}
		for _, lot := range updated {
			if int64(lot.QuantityRemaining) == before[lot.ID] {
				continue
			}
			if err := compareAndSet(tx, lot.ID, before[lot.ID], int64(lot.QuantityRemaining)); err != nil {
				return err
			}
		}
		now := s.now()
		for _, draw := range d {
			mv := domain.Outflow(common.NewMovementID(), domain.MovementUsage, ingredientID, draw.LotID, draw.Quantity, now)
			if err := tx.Create(toMovementModel(mv)).Error; err != nil {
				return err
			}
		}
		draws = d
		return bumpVersion(tx)
	})
	return draws, err
}

// Movements 原料的異動紀錄
func (s *GormStore) Movements(ctx context.Context, ingredientID string) ([]domain.Movement, error) {
	catalog, err := s.catalog(s.db, ingredientID)
	if err != nil {
		return nil, err
	}
	if _, ok := catalog.Lookup(ingredientID); !ok {
		return nil, common.NewNotFoundError("ingredient", ingredientID, "")
	}

	var rows []movementModel
	if err := s.db.Where("ingredient_id = ?", ingredientID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read movements: %w", err)
	}
	out := make([]domain.Movement, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	sortMovements(out)
	return out, nil
}

// Ping 檢查資料庫連線
func (s *GormStore) Ping(ctx context.Context) error {
	return s.db.DB().PingContext(ctx)
}

// Close 關閉資料庫連線
func (s *GormStore) Close() error {
	return s.db.Close()
}

func (s *GormStore) transaction(fn func(tx *gorm.DB) error) error {
	tx := s.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// catalog 只載入需要的原料
func (s *GormStore) catalog(tx *gorm.DB, ingredientID string) (domain.Catalog, error) {
	var m ingredientModel
	if err := tx.Where("id = ?", ingredientID).First(&m).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return domain.Catalog{}, nil
		}
		return nil, err
	}
	return domain.Catalog{m.ID: {ID: m.ID, Name: m.Name, Category: domain.Category(m.Category), BaseUnit: units.Dimension(m.BaseUnit)}}, nil
}

// compareAndSet 以舊值作為條件更新，避免並行扣減互相覆蓋
func compareAndSet(tx *gorm.DB, id string, old, next int64) error {
	res := tx.Model(&lotModel{}).Where("id = ? AND quantity_remaining = ?", id, old).Update("quantity_remaining", next)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return common.ErrConflict.Wrap(fmt.Errorf("lot %s was modified concurrently", id))
	}
	return nil
}

func readVersion(db *gorm.DB) (uint64, error) {
	var m metaModel
	if err := db.Where("name = ?", versionKey).First(&m).Error; err != nil {
		return 0, fmt.Errorf("failed to read version: %w", err)
	}
	return uint64(m.Value), nil
}

func bumpVersion(tx *gorm.DB) error {
	return tx.Model(&metaModel{}).Where("name = ?", versionKey).Update("value", gorm.Expr("value + ?", 1)).Error
}

func toLotModel(l domain.InventoryLot) *lotModel {
	return &lotModel{
		ID:                l.ID,
		IngredientID:      l.IngredientID,
		QuantityRemaining: int64(l.QuantityRemaining),
		Unit:              l.Unit,
		ReceivedAt:        l.ReceivedAt.UTC(),
		ExpiresAt:         utcPtr(l.ExpiresAt),
		Supplier:          l.Supplier,
	}
}

func (m lotModel) toDomain() domain.InventoryLot {
	return domain.InventoryLot{
		ID:                m.ID,
		IngredientID:      m.IngredientID,
		QuantityRemaining: units.BaseQuantity(m.QuantityRemaining),
		Unit:              m.Unit,
		ReceivedAt:        m.ReceivedAt.UTC(),
		ExpiresAt:         utcPtr(m.ExpiresAt),
		Supplier:          m.Supplier,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
