package domain

import (
	"fmt"
	"strings"
	"time"

	"brew-planner/internal/core/units"
)

// MovementType 庫存異動種類
type MovementType string

const (
	MovementPurchase   MovementType = "purchase"
	MovementUsage      MovementType = "usage"
	MovementAdjustment MovementType = "adjustment"
	MovementExpiry     MovementType = "expiry"
)

// ParseOutflow 解析扣減原因；空字串視為 usage，purchase 只能由入庫產生
func ParseOutflow(s string) (MovementType, error) {
	switch MovementType(strings.ToLower(strings.TrimSpace(s))) {
	case "", MovementUsage:
		return MovementUsage, nil
	case MovementAdjustment:
		return MovementAdjustment, nil
	case MovementExpiry:
		return MovementExpiry, nil
	}
	return "", fmt.Errorf("unknown movement type %q: expected usage, adjustment or expiry", s)
}

// Movement 單筆庫存異動；Quantity 入庫為正、扣減為負
type Movement struct {
	ID           string             `json:"id"`
	IngredientID string             `json:"ingredientId"`
	LotID        string             `json:"lotId"`
	Type         MovementType       `json:"type"`
	Quantity     units.BaseQuantity `json:"quantity"`
	OccurredAt   time.Time          `json:"occurredAt"`
}

// Purchase 入庫異動
func Purchase(id string, lot InventoryLot, at time.Time) Movement {
	return Movement{ID: id, IngredientID: lot.IngredientID, LotID: lot.ID, Type: MovementPurchase,
		Quantity: lot.QuantityRemaining, OccurredAt: at}
}

// Outflow 扣減異動
func Outflow(id string, kind MovementType, ingredientID, lotID string, q units.BaseQuantity, at time.Time) Movement {
	return Movement{ID: id, IngredientID: ingredientID, LotID: lotID, Type: kind, Quantity: -q, OccurredAt: at}
}
