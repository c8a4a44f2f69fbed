package inventory

import (
	"fmt"
	"sort"

	"brew-planner/internal/core/domain"
	"brew-planner/internal/core/units"
)

// ThresholdPolicy 提供低庫存門檻與原料維度
type ThresholdPolicy interface {
	// Threshold 原料的低庫存門檻（最小單位）
	Threshold(ingredientID string) (units.BaseQuantity, bool)
	// Dimension 原料的基本維度
	Dimension(ingredientID string) units.Dimension
	// Tracked 所有設有門檻的原料 id（已排序）
	Tracked() []string
}

// CatalogThresholds 以原料自身門檻優先，其次為類別門檻
type CatalogThresholds struct {
	catalog    domain.Catalog
	thresholds map[string]units.BaseQuantity
	tracked    []string
}

// NewCatalogThresholds 建立門檻策略；設定錯誤的門檻會被略過並回報，而不是中止
func NewCatalogThresholds(catalog domain.Catalog, byCategory map[domain.Category]units.Amount) (*CatalogThresholds, []error) {
	p := &CatalogThresholds{
		catalog:    catalog,
		thresholds: make(map[string]units.BaseQuantity),
	}

	var issues []error
	for id, ing := range catalog {
		amount := ing.LowStockThreshold
		if amount == nil {
			if a, ok := byCategory[ing.Category]; ok {
				amount = &a
			}
		}
		if amount == nil {
			continue
		}
		q, err := amount.Normalize(ing.BaseUnit)
		if err != nil {
			issues = append(issues, fmt.Errorf("low stock threshold for %s (%s): %w", id, ing.Category, err))
			continue
		}
		p.thresholds[id] = q
		p.tracked = append(p.tracked, id)
	}
	sort.Strings(p.tracked)
	sort.Slice(issues, func(i, j int) bool { return issues[i].Error() < issues[j].Error() })

	return p, issues
}

// Threshold 實現 ThresholdPolicy
func (p *CatalogThresholds) Threshold(id string) (units.BaseQuantity, bool) {
	q, ok := p.thresholds[id]
	return q, ok
}

// Dimension 實現 ThresholdPolicy
func (p *CatalogThresholds) Dimension(id string) units.Dimension {
	if ing, ok := p.catalog[id]; ok {
		return ing.BaseUnit
	}
	return ""
}

// Tracked 實現 ThresholdPolicy
func (p *CatalogThresholds) Tracked() []string {
	return p.tracked
}
