package feasibility

import (
	"fmt"

	"brew-planner/internal/core/domain"
	"brew-planner/internal/core/inventory"
	"brew-planner/internal/core/substitution"
	"brew-planner/internal/core/units"
	"brew-planner/internal/pkg/common"
)

// Shortfall 必要需求在直接庫存與替代後仍未滿足的部分
type Shortfall struct {
	IngredientID          string                          `json:"ingredientId"`
	IngredientName        string                          `json:"ingredientName,omitempty"`
	BaseUnit              string                          `json:"baseUnit"`
	Required              units.BaseQuantity              `json:"required"`
	Available             units.BaseQuantity              `json:"available"`
	MissingQuantity       units.BaseQuantity              `json:"missingQuantity"`
	SubstitutesConsidered []substitution.RankedSubstitute `json:"substitutesConsidered"`
}

// OptionalGap 未滿足的選用需求，不影響是否可釀造
type OptionalGap struct {
	IngredientID    string             `json:"ingredientId"`
	IngredientName  string             `json:"ingredientName,omitempty"`
	BaseUnit        string             `json:"baseUnit"`
	MissingQuantity units.BaseQuantity `json:"missingQuantity"`
}

// AppliedSubstitution 透過替代品滿足的需求
type AppliedSubstitution struct {
	IngredientID string                          `json:"ingredientId"`
	Deficit      units.BaseQuantity              `json:"deficit"`
	Substitutes  []substitution.RankedSubstitute `json:"substitutes"`
}

// Result 單一配方的可行性結果
type Result struct {
	RecipeID      string                `json:"recipeId"`
	Name          string                `json:"name"`
	Style         string                `json:"style"`
	CanBrew       bool                  `json:"canBrew"`
	Shortfalls    []Shortfall           `json:"shortfalls"`
	OptionalGaps  []OptionalGap         `json:"optionalGaps"`
	Substitutions []AppliedSubstitution `json:"substitutions"`
	Warnings      []string              `json:"warnings,omitempty"`
	Error         string                `json:"error,omitempty"`
}

// Evaluator 可行性評估器，對輸入唯讀
type Evaluator struct {
	catalog domain.Catalog
	rules   *substitution.Index
}

// NewEvaluator 創建評估器，並回報引用不存在原料的替代規則
func NewEvaluator(catalog domain.Catalog, rules []domain.SubstitutionRule) (*Evaluator, []string) {
	var warnings []string
	for _, r := range rules {
		for _, id := range []string{r.FromIngredientID, r.ToIngredientID} {
			if _, ok := catalog.Lookup(id); !ok {
				warnings = append(warnings, common.NewNotFoundError("ingredient", id,
					fmt.Sprintf("substitution rule %s->%s", r.FromIngredientID, r.ToIngredientID)).Error())
			}
		}
	}
	return &Evaluator{catalog: catalog, rules: substitution.NewIndex(rules)}, warnings
}

// ledger 單次評估內的暫時保留量，只存在於此次呼叫
type ledger struct {
	stock    inventory.Stock
	reserved map[string]units.BaseQuantity
}

func (l *ledger) Available(id string) units.BaseQuantity {
	return l.stock.Available(id) - l.reserved[id]
}

func (l *ledger) reserve(id string, q units.BaseQuantity) {
	if q > 0 {
		l.reserved[id] = units.Add(l.reserved[id], q)
	}
}

// Evaluate 評估配方是否可釀造；不修改 stock
func (e *Evaluator) Evaluate(recipe domain.Recipe, stock inventory.Stock) Result {
	res := Result{
		RecipeID:      recipe.ID,
		Name:          recipe.Name,
		Style:         recipe.Style,
		CanBrew:       true,
		Shortfalls:    []Shortfall{},
		OptionalGaps:  []OptionalGap{},
		Substitutions: []AppliedSubstitution{},
	}

	l := &ledger{stock: stock, reserved: make(map[string]units.BaseQuantity)}

	for i, req := range recipe.Requirements {
		dim, name, err := e.dimensionFor(req)
		if err != nil {
			res.Warnings = append(res.Warnings, err.Error())
		}
		required, err := units.Normalize(req.Quantity, req.Unit, dim)
		if err != nil {
			res.CanBrew = false
			res.Error = fmt.Sprintf("requirement %d (%s): %v", i, req.IngredientID, err)
			return res
		}

		available := max(l.Available(req.IngredientID), 0)
		deficit := required - available
		if deficit <= 0 {
			l.reserve(req.IngredientID, required)
			continue
		}
		l.reserve(req.IngredientID, available)

		outcome := substitution.Resolve(req.IngredientID, deficit, l, e.rules, make(map[string]bool))
		if outcome.FullyCovered(deficit) {
			for _, c := range outcome.Candidates {
				l.reserve(c.IngredientID, c.Used)
			}
			res.Substitutions = append(res.Substitutions, AppliedSubstitution{
				IngredientID: req.IngredientID,
				Deficit:      deficit,
				Substitutes:  used(outcome.Candidates),
			})
			continue
		}

		missing := deficit - outcome.Covered
		if req.Optional {
			res.OptionalGaps = append(res.OptionalGaps, OptionalGap{
				IngredientID:    req.IngredientID,
				IngredientName:  name,
				BaseUnit:        dim.BaseUnit(),
				MissingQuantity: missing,
			})
			continue
		}

		res.CanBrew = false
		res.Shortfalls = append(res.Shortfalls, Shortfall{
			IngredientID:          req.IngredientID,
			IngredientName:        name,
			BaseUnit:              dim.BaseUnit(),
			Required:              required,
			Available:             available,
			MissingQuantity:       missing,
			SubstitutesConsidered: outcome.Candidates,
		})
	}

	return res
}

// dimensionFor 取得需求的基本維度；原料不在目錄中時沿用需求單位本身的維度
func (e *Evaluator) dimensionFor(req domain.RecipeRequirement) (units.Dimension, string, error) {
	if ing, ok := e.catalog.Lookup(req.IngredientID); ok {
		return ing.BaseUnit, ing.Name, nil
	}
	nf := common.NewNotFoundError("ingredient", req.IngredientID, "recipe requirement")
	dim, err := units.DimensionOf(req.Unit)
	if err != nil {
		return "", "", nf
	}
	return dim, "", nf
}

func used(cs []substitution.RankedSubstitute) []substitution.RankedSubstitute {
	out := make([]substitution.RankedSubstitute, 0, len(cs))
	for _, c := range cs {
		if c.Used > 0 {
			out = append(out, c)
		}
	}
	return out
}
