package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"brew-planner/internal/core/domain"
	"brew-planner/internal/core/inventory"
	"brew-planner/internal/core/units"
	"brew-planner/internal/pkg/common"

	"github.com/shopspring/decimal"
)

// MemoryStore 以記憶體保存資料，適合開發與測試
type MemoryStore struct {
	mu        sync.RWMutex
	snap      *Snapshot
	movements []domain.Movement
	now       func() time.Time
}

// NewMemoryStore 創建記憶體資料來源；seed 可為 nil
func NewMemoryStore(seed *Seed) (*MemoryStore, error) {
	m := &MemoryStore{now: time.Now}
	if seed == nil {
		m.snap = &Snapshot{Version: 1, Prices: map[string]decimal.Decimal{}}
		return m, nil
	}
	snap, err := seed.Build(m.now())
	if err != nil {
		return nil, err
	}
	m.snap = snap
	for _, lot := range snap.Lots {
		m.movements = append(m.movements, domain.Purchase(common.NewMovementID(), lot, lot.ReceivedAt))
	}
	return m, nil
}

// Snapshot 回傳目前資料的複本
func (m *MemoryStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prices := make(map[string]decimal.Decimal, len(m.snap.Prices))
	for k, v := range m.snap.Prices {
		prices[k] = v
	}
	return &Snapshot{
		Version:     m.snap.Version,
		Ingredients: append([]domain.Ingredient(nil), m.snap.Ingredients...),
		Lots:        append([]domain.InventoryLot(nil), m.snap.Lots...),
		Recipes:     append([]domain.Recipe(nil), m.snap.Recipes...),
		Rules:       append([]domain.SubstitutionRule(nil), m.snap.Rules...),
		Prices:      prices,
	}, nil
}

// Version 目前版本
func (m *MemoryStore) Version(ctx context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.Version, nil
}

// AddLot 新增批次
func (m *MemoryStore) AddLot(ctx context.Context, rec domain.LotRecord) (domain.InventoryLot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lot, err := prepareLot(m.snap.Catalog(), rec, m.now())
	if err != nil {
		return domain.InventoryLot{}, err
	}
	for _, l := range m.snap.Lots {
		if l.ID == lot.ID {
			return domain.InventoryLot{}, common.ErrConflict.Wrap(fmt.Errorf("lot %s already exists", lot.ID))
		}
	}
	m.snap.Lots = append(m.snap.Lots, lot)
	m.movements = append(m.movements, domain.Purchase(common.NewMovementID(), lot, m.now()))
	m.snap.Version++
	return lot, nil
}

// ConsumeLot 扣減指定批次
func (m *MemoryStore) ConsumeLot(ctx context.Context, lotID string, amount units.Amount, kind domain.MovementType) (domain.InventoryLot, error) {
	kind, err := checkOutflow(kind)
	if err != nil {
		return domain.InventoryLot{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, l := range m.snap.Lots {
		if l.ID != lotID {
			continue
		}
		q, err := normalizeFor(m.snap.Catalog(), l.IngredientID, amount)
		if err != nil {
			return domain.InventoryLot{}, err
		}
		updated, err := l.Consume(q)
		if err != nil {
			return domain.InventoryLot{}, err
		}
		m.snap.Lots[i] = updated
		m.movements = append(m.movements, domain.Outflow(common.NewMovementID(), kind, l.IngredientID, l.ID, q, m.now()))
		m.snap.Version++
		return updated, nil
	}
	return domain.InventoryLot{}, common.NewNotFoundError("lot", lotID, "")
}

// ConsumeIngredient 依先到期先出扣減
func (m *MemoryStore) ConsumeIngredient(ctx context.Context, ingredientID string, amount units.Amount, asOf time.Time) ([]inventory.Draw, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, err := normalizeFor(m.snap.Catalog(), ingredientID, amount)
	if err != nil {
		return nil, err
	}
	lots, draws, err := inventory.ConsumeFEFO(m.snap.Lots, ingredientID, q, asOf)
	if err != nil {
		return nil, err
	}
	m.snap.Lots = lots
	now := m.now()
	for _, d := range draws {
		m.movements = append(m.movements, domain.Outflow(common.NewMovementID(), domain.MovementUsage, ingredientID, d.LotID, d.Quantity, now))
	}
	m.snap.Version++
	return draws, nil
}

// Movements 原料的異動紀錄
func (m *MemoryStore) Movements(ctx context.Context, ingredientID string) ([]domain.Movement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.snap.Catalog().Lookup(ingredientID); !ok {
		return nil, common.NewNotFoundError("ingredient", ingredientID, "")
	}
	out := []domain.Movement{}
	for _, mv := range m.movements {
		if mv.IngredientID == ingredientID {
			out = append(out, mv)
		}
	}
	sortMovements(out)
	return out, nil
}

// Ping 記憶體資料來源永遠可用
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close 無需釋放資源
func (m *MemoryStore) Close() error {
	return nil
}
