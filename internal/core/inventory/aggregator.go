package inventory

import (
	"sort"
	"time"

	"brew-planner/internal/core/domain"
	"brew-planner/internal/core/units"
)

// LotView 聚合結果中保留的批次明細
type LotView struct {
	LotID     string             `json:"lotId"`
	Quantity  units.BaseQuantity `json:"quantity"`
	ExpiresAt *time.Time         `json:"expiresAt,omitempty"`
	Supplier  string             `json:"supplier,omitempty"`
}

// AvailableStock 單一原料在評估時點的可用庫存（推導值，不持久化）
type AvailableStock struct {
	IngredientID      string              `json:"ingredientId"`
	Dimension         units.Dimension     `json:"dimension,omitempty"`
	TotalQuantity     units.BaseQuantity  `json:"totalQuantity"`
	EarliestExpiry    *time.Time          `json:"earliestExpiry,omitempty"`
	LowStockThreshold *units.BaseQuantity `json:"lowStockThreshold,omitempty"`
	Lots              []LotView           `json:"lots"`
	RecentlyExpired   []LotView           `json:"recentlyExpired,omitempty"`
}

// Stock 以原料 id 索引的快照，評估期間唯讀
type Stock map[string]AvailableStock

// Available 可用總量，無資料視為 0
func (s Stock) Available(id string) units.BaseQuantity {
	if st, ok := s[id]; ok {
		return st.TotalQuantity
	}
	return 0
}

// Aggregator 將多個批次合併為可用庫存
type Aggregator struct {
	lookback   time.Duration
	thresholds ThresholdPolicy
}

// NewAggregator 創建聚合器；lookback 為「近期過期」保留時間
func NewAggregator(lookback time.Duration, thresholds ThresholdPolicy) *Aggregator {
	if lookback < 0 {
		lookback = 0
	}
	return &Aggregator{lookback: lookback, thresholds: thresholds}
}

// Aggregate 依原料分組加總批次數量；結果與批次輸入順序無關
func (a *Aggregator) Aggregate(lots []domain.InventoryLot, asOf time.Time) Stock {
	stock := make(Stock)

	for _, lot := range lots {
		view := LotView{
			LotID:     lot.ID,
			Quantity:  lot.QuantityRemaining,
			ExpiresAt: lot.ExpiresAt,
			Supplier:  lot.Supplier,
		}

		if lot.ExpiredAt(asOf) {
			if asOf.Sub(*lot.ExpiresAt) > a.lookback {
				continue
			}
			entry := stock[lot.IngredientID]
			entry.IngredientID = lot.IngredientID
			entry.RecentlyExpired = append(entry.RecentlyExpired, view)
			stock[lot.IngredientID] = entry
			continue
		}

		entry := stock[lot.IngredientID]
		entry.IngredientID = lot.IngredientID
		if lot.QuantityRemaining > 0 {
			entry.TotalQuantity = units.Add(entry.TotalQuantity, lot.QuantityRemaining)
			if lot.ExpiresAt != nil && (entry.EarliestExpiry == nil || lot.ExpiresAt.Before(*entry.EarliestExpiry)) {
				exp := *lot.ExpiresAt
				entry.EarliestExpiry = &exp
			}
		}
		entry.Lots = append(entry.Lots, view)
		stock[lot.IngredientID] = entry
	}

	if a.thresholds != nil {
		for _, id := range a.thresholds.Tracked() {
			if _, ok := stock[id]; !ok {
				stock[id] = AvailableStock{IngredientID: id}
			}
		}
	}

	for id, entry := range stock {
		sortLots(entry.Lots)
		sortLots(entry.RecentlyExpired)
		if entry.Lots == nil {
			entry.Lots = []LotView{}
		}
		if a.thresholds != nil {
			entry.Dimension = a.thresholds.Dimension(id)
			if th, ok := a.thresholds.Threshold(id); ok {
				entry.LowStockThreshold = &th
			}
		}
		stock[id] = entry
	}

	return stock
}

// sortLots 依到期日（無到期日排最後）與 id 排序，保證輸出穩定
func sortLots(lots []LotView) {
	sort.Slice(lots, func(i, j int) bool {
		a, b := lots[i], lots[j]
		switch {
		case a.ExpiresAt == nil && b.ExpiresAt != nil:
			return false
		case a.ExpiresAt != nil && b.ExpiresAt == nil:
			return true
		case a.ExpiresAt != nil && b.ExpiresAt != nil && !a.ExpiresAt.Equal(*b.ExpiresAt):
			return a.ExpiresAt.Before(*b.ExpiresAt)
		}
		if a.LotID != b.LotID {
			return a.LotID < b.LotID
		}
		return a.Quantity < b.Quantity
	})
}
