package recommendation

import (
	"sort"
	"strings"
	"time"

	"brew-planner/internal/core/domain"
	"brew-planner/internal/core/inventory"
	"brew-planner/internal/core/units"

	"github.com/shopspring/decimal"
)

// Stats 庫存統計
type Stats struct {
	TotalIngredients int             `json:"totalIngredients"`
	TotalValue       decimal.Decimal `json:"totalValue"`
	LowStockCount    int             `json:"lowStockCount"`
	ExpiringCount    int             `json:"expiringCount"`
	// Unpriced 有庫存但沒有單價的原料，不計入總值
	Unpriced []string `json:"unpriced,omitempty"`
}

// ComputeStats 對可用庫存做純粹的彙總；prices 為每公斤、每公升或每個的單價
func ComputeStats(stock inventory.Stock, prices map[string]decimal.Decimal, asOf time.Time, windowDays int) Stats {
	horizon := asOf.Add(time.Duration(windowDays) * 24 * time.Hour)
	stats := Stats{TotalValue: decimal.Zero}

	for id, st := range stock {
		if st.TotalQuantity > 0 {
			stats.TotalIngredients++
			if p, ok := prices[id]; ok {
				stats.TotalValue = stats.TotalValue.Add(p.Mul(units.Display(st.TotalQuantity, st.Dimension)))
			} else {
				stats.Unpriced = append(stats.Unpriced, id)
			}
		}
		if st.LowStockThreshold != nil && st.TotalQuantity < *st.LowStockThreshold {
			stats.LowStockCount++
		}
		if st.EarliestExpiry != nil && !st.EarliestExpiry.After(horizon) {
			stats.ExpiringCount++
		}
	}

	stats.TotalValue = stats.TotalValue.Round(2)
	sort.Strings(stats.Unpriced)
	return stats
}

// InventoryItem 庫存列表的一列
type InventoryItem struct {
	IngredientID   string              `json:"ingredientId"`
	Name           string              `json:"name"`
	Category       domain.Category     `json:"category"`
	BaseUnit       string              `json:"baseUnit"`
	TotalQuantity  units.BaseQuantity  `json:"totalQuantity"`
	Display        string              `json:"display"`
	EarliestExpiry *time.Time          `json:"earliestExpiry,omitempty"`
	LowStock       bool                `json:"lowStock"`
	Lots           []inventory.LotView `json:"lots"`
}

// InventoryFilter 庫存列表篩選
type InventoryFilter struct {
	Category domain.Category
	Search   string
}

// InventoryView 將聚合庫存與目錄合併成列表，依類別與名稱排序；目錄中無庫存的原料也列出
func InventoryView(catalog domain.Catalog, stock inventory.Stock, f InventoryFilter) []InventoryItem {
	items := []InventoryItem{}
	search := strings.ToLower(strings.TrimSpace(f.Search))

	for id, ing := range catalog {
		if f.Category != "" && ing.Category != f.Category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(ing.Name), search) && !strings.Contains(strings.ToLower(id), search) {
			continue
		}
		items = append(items, inventoryItem(ing, stock[id]))
	}

	rank := make(map[domain.Category]int, len(domain.Categories))
	for i, c := range domain.Categories {
		rank[c] = i
	}
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if rank[a.Category] != rank[b.Category] {
			return rank[a.Category] < rank[b.Category]
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.IngredientID < b.IngredientID
	})
	return items
}

func inventoryItem(ing domain.Ingredient, st inventory.AvailableStock) InventoryItem {
	item := InventoryItem{
		IngredientID:   ing.ID,
		Name:           ing.Name,
		Category:       ing.Category,
		BaseUnit:       ing.BaseUnit.BaseUnit(),
		TotalQuantity:  st.TotalQuantity,
		Display:        units.Format(st.TotalQuantity, ing.BaseUnit),
		EarliestExpiry: st.EarliestExpiry,
		LowStock:       st.LowStockThreshold != nil && st.TotalQuantity < *st.LowStockThreshold,
		Lots:           st.Lots,
	}
	if item.Lots == nil {
		item.Lots = []inventory.LotView{}
	}
	return item
}

// IngredientDetail 單一原料的庫存明細
type IngredientDetail struct {
	InventoryItem
	LowStockThreshold *units.BaseQuantity `json:"lowStockThreshold,omitempty"`
	RecentlyExpired   []inventory.LotView `json:"recentlyExpired"`
	UnitPrice         *decimal.Decimal    `json:"unitPrice,omitempty"`
}

// IngredientView 單一原料的明細；單價未知時省略
func IngredientView(ing domain.Ingredient, stock inventory.Stock, prices map[string]decimal.Decimal) IngredientDetail {
	st := stock[ing.ID]
	d := IngredientDetail{
		InventoryItem:     inventoryItem(ing, st),
		LowStockThreshold: st.LowStockThreshold,
		RecentlyExpired:   st.RecentlyExpired,
	}
	if d.RecentlyExpired == nil {
		d.RecentlyExpired = []inventory.LotView{}
	}
	if p, ok := prices[ing.ID]; ok {
		d.UnitPrice = &p
	}
	return d
}
