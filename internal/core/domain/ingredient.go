package domain

import (
	"fmt"
	"strings"

	"brew-planner/internal/core/units"
)

// Category 原料類別
type Category string

const (
	CategoryMalt    Category = "Malt"
	CategoryHop     Category = "Hop"
	CategoryYeast   Category = "Yeast"
	CategoryAdjunct Category = "Adjunct"
	CategoryOther   Category = "Other"
)

// Categories 所有類別，依顯示順序
var Categories = []Category{CategoryMalt, CategoryHop, CategoryYeast, CategoryAdjunct, CategoryOther}

// ParseCategory 不分大小寫解析類別
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(string(c), strings.TrimSpace(s)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Ingredient 原料，一旦被庫存或配方引用即不可變
type Ingredient struct {
	ID                string          `json:"id" yaml:"id"`
	Name              string          `json:"name" yaml:"name"`
	Category          Category        `json:"category" yaml:"category"`
	BaseUnit          units.Dimension `json:"baseUnit" yaml:"base_unit"`
	LowStockThreshold *units.Amount   `json:"lowStockThreshold,omitempty" yaml:"low_stock_threshold,omitempty"`
}

// Validate 檢查必要欄位
func (i Ingredient) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("ingredient id is required")
	}
	if i.Name == "" {
		return fmt.Errorf("ingredient %s: name is required", i.ID)
	}
	if _, err := ParseCategory(string(i.Category)); err != nil {
		return fmt.Errorf("ingredient %s: %w", i.ID, err)
	}
	if !i.BaseUnit.Valid() {
		return fmt.Errorf("ingredient %s: unknown base unit %q", i.ID, i.BaseUnit)
	}
	if i.LowStockThreshold != nil {
		if _, err := i.LowStockThreshold.Normalize(i.BaseUnit); err != nil {
			return fmt.Errorf("ingredient %s: low stock threshold: %w", i.ID, err)
		}
	}
	return nil
}

// Catalog 以 id 索引的原料目錄
type Catalog map[string]Ingredient

// NewCatalog 由原料列表建立目錄
func NewCatalog(ingredients []Ingredient) Catalog {
	c := make(Catalog, len(ingredients))
	for _, ing := range ingredients {
		c[ing.ID] = ing
	}
	return c
}

// Lookup 查詢原料
func (c Catalog) Lookup(id string) (Ingredient, bool) {
	ing, ok := c[id]
	return ing, ok
}

// Name 原料名稱，查無時回傳 id
func (c Catalog) Name(id string) string {
	if ing, ok := c[id]; ok {
		return ing.Name
	}
	return id
}
