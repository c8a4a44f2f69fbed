package substitution

import (
	"sort"

	"brew-planner/internal/core/domain"
	"brew-planner/internal/core/units"
)

// Availability 提供評估中（已扣除暫時保留量）的可用量
type Availability interface {
	Available(ingredientID string) units.BaseQuantity
}

// RankedSubstitute 排序後的替代候選
type RankedSubstitute struct {
	IngredientID     string             `json:"ingredientId"`
	ConversionRatio  float64            `json:"conversionRatio"`
	SuitabilityScore float64            `json:"suitabilityScore"`
	Available        units.BaseQuantity `json:"available"`
	// Used 實際使用的替代品數量（替代品單位）
	Used units.BaseQuantity `json:"used"`
	// Covers 此候選補足的原需求數量（原料單位）
	Covers units.BaseQuantity `json:"covers"`
}

// Outcome 替代解析結果
type Outcome struct {
	Covered    units.BaseQuantity `json:"covered"`
	Candidates []RankedSubstitute `json:"candidates"`
}

// FullyCovered 是否完全補足缺口
func (o Outcome) FullyCovered(deficit units.BaseQuantity) bool {
	return o.Covered >= deficit
}

// Index 依 from 分組的替代規則，保留輸入順序
type Index struct {
	byFrom map[string][]domain.SubstitutionRule
}

// NewIndex 建立規則索引，比例無效的規則會被略過
func NewIndex(rules []domain.SubstitutionRule) *Index {
	idx := &Index{byFrom: make(map[string][]domain.SubstitutionRule)}
	for _, r := range rules {
		if r.ConversionRatio <= 0 {
			continue
		}
		idx.byFrom[r.FromIngredientID] = append(idx.byFrom[r.FromIngredientID], r)
	}
	return idx
}

// From 取得以 id 為來源的規則
func (idx *Index) From(id string) []domain.SubstitutionRule {
	if idx == nil {
		return nil
	}
	return idx.byFrom[id]
}

// Resolve 為缺口挑選替代品。只做單層替代：候選品本身的不足不會再往下解析。
// visited 記錄此解析鏈中已進入的原料，已訪問者一律略過，因此規則圖有環也會終止。
func Resolve(ingredientID string, deficit units.BaseQuantity, avail Availability, idx *Index, visited map[string]bool) Outcome {
	out := Outcome{Candidates: []RankedSubstitute{}}
	if visited == nil {
		visited = make(map[string]bool)
	}
	visited[ingredientID] = true

	type ranked struct {
		RankedSubstitute
		order int
	}
	var candidates []ranked
	for i, rule := range idx.From(ingredientID) {
		if visited[rule.ToIngredientID] {
			continue
		}
		visited[rule.ToIngredientID] = true
		candidates = append(candidates, ranked{
			RankedSubstitute: RankedSubstitute{
				IngredientID:     rule.ToIngredientID,
				ConversionRatio:  rule.ConversionRatio,
				SuitabilityScore: rule.SuitabilityScore,
				Available:        avail.Available(rule.ToIngredientID),
			},
			order: i,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.SuitabilityScore != b.SuitabilityScore {
			return a.SuitabilityScore > b.SuitabilityScore
		}
		if a.Available != b.Available {
			return a.Available > b.Available
		}
		return a.order < b.order
	})

	remaining := deficit
	for _, c := range candidates {
		if remaining > 0 && c.Available > 0 {
			need := units.ScaleUp(remaining, c.ConversionRatio)
			if need <= c.Available {
				c.Used = need
				c.Covers = remaining
			} else {
				c.Covers = units.ScaleDown(c.Available, c.ConversionRatio)
				if c.Covers > 0 {
					c.Used = min(units.ScaleUp(c.Covers, c.ConversionRatio), c.Available)
				}
			}
			remaining -= c.Covers
			out.Covered = units.Add(out.Covered, c.Covers)
		}
		out.Candidates = append(out.Candidates, c.RankedSubstitute)
	}

	return out
}
