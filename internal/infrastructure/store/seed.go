package store

import (
	"errors"
	"fmt"
	"os"
	"time"

	"brew-planner/internal/core/domain"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Seed 種子檔內容
type Seed struct {
	Ingredients   []domain.Ingredient       `yaml:"ingredients"`
	Lots          []domain.LotRecord        `yaml:"lots"`
	Recipes       []domain.Recipe           `yaml:"recipes"`
	Substitutions []domain.SubstitutionRule `yaml:"substitutions"`
	Prices        map[string]string         `yaml:"prices"`
}

// LoadSeed 讀取並解析 YAML 種子檔
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	return ParseSeed(data)
}

// ParseSeed 解析 YAML 並檢查結構
func ParseSeed(data []byte) (*Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse seed YAML: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate 檢查所有記錄，一次回報全部問題
func (s *Seed) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	for _, ing := range s.Ingredients {
		if err := ing.Validate(); err != nil {
			errs = append(errs, err)
		}
		if seen[ing.ID] {
			errs = append(errs, fmt.Errorf("duplicate ingredient %s", ing.ID))
		}
		seen[ing.ID] = true
	}
	for _, r := range s.Recipes {
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, r := range s.Substitutions {
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, l := range s.Lots {
		if err := l.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for id, p := range s.Prices {
		if _, err := decimal.NewFromString(p); err != nil {
			errs = append(errs, fmt.Errorf("price for %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Build 轉換批次單位並產生第一版快照
func (s *Seed) Build(now time.Time) (*Snapshot, error) {
	snap := &Snapshot{
		Version:     1,
		Ingredients: append([]domain.Ingredient(nil), s.Ingredients...),
		Recipes:     append([]domain.Recipe(nil), s.Recipes...),
		Rules:       append([]domain.SubstitutionRule(nil), s.Substitutions...),
		Prices:      make(map[string]decimal.Decimal, len(s.Prices)),
	}
	catalog := snap.Catalog()
	for _, rec := range s.Lots {
		lot, err := prepareLot(catalog, rec, now)
		if err != nil {
			return nil, fmt.Errorf("seed lot: %w", err)
		}
		snap.Lots = append(snap.Lots, lot)
	}
	for id, p := range s.Prices {
		d, err := decimal.NewFromString(p)
		if err != nil {
			return nil, fmt.Errorf("price for %s: %w", id, err)
		}
		snap.Prices[id] = d
	}
	return snap, nil
}
