package inventory

import (
	"fmt"
	"sort"
	"time"

	"brew-planner/internal/core/domain"
	"brew-planner/internal/core/units"
)

// Draw 單一批次的扣減記錄
type Draw struct {
	LotID    string             `json:"lotId"`
	Quantity units.BaseQuantity `json:"quantity"`
}

// ConsumeFEFO 依先到期先出扣減原料，庫存不足時整筆拒絕，不修改任何批次
func ConsumeFEFO(lots []domain.InventoryLot, ingredientID string, qty units.BaseQuantity, asOf time.Time) ([]domain.InventoryLot, []Draw, error) {
	if qty < 0 {
		return nil, nil, fmt.Errorf("cannot consume negative quantity %d", qty)
	}

	var candidates []int
	var available units.BaseQuantity
	for i, lot := range lots {
		if lot.IngredientID != ingredientID || lot.ExpiredAt(asOf) || lot.QuantityRemaining == 0 {
			continue
		}
		candidates = append(candidates, i)
		available = units.Add(available, lot.QuantityRemaining)
	}
	if available < qty {
		return nil, nil, fmt.Errorf("ingredient %s: need %d, have %d: %w", ingredientID, qty, available, domain.ErrInsufficientQuantity)
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		la, lb := lots[candidates[a]], lots[candidates[b]]
		switch {
		case la.ExpiresAt == nil && lb.ExpiresAt != nil:
			return false
		case la.ExpiresAt != nil && lb.ExpiresAt == nil:
			return true
		case la.ExpiresAt != nil && lb.ExpiresAt != nil && !la.ExpiresAt.Equal(*lb.ExpiresAt):
			return la.ExpiresAt.Before(*lb.ExpiresAt)
		}
		return la.ReceivedAt.Before(lb.ReceivedAt)
	})

	updated := make([]domain.InventoryLot, len(lots))
	copy(updated, lots)

	var draws []Draw
	remaining := qty
	for _, idx := range candidates {
		if remaining == 0 {
			break
		}
		take := updated[idx].QuantityRemaining
		if take > remaining {
			take = remaining
		}
		lot, err := updated[idx].Consume(take)
		if err != nil {
			return nil, nil, err
		}
		updated[idx] = lot
		draws = append(draws, Draw{LotID: lot.ID, Quantity: take})
		remaining -= take
	}

	return updated, draws, nil
}
