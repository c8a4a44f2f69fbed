package domain

import (
	"errors"
	"fmt"
	"time"

	"brew-planner/internal/core/units"
)

// ErrInsufficientQuantity 扣減會使批次數量為負
var ErrInsufficientQuantity = errors.New("insufficient quantity remaining")

// InventoryLot 實體批次，數量已轉換為原料基本單位
type InventoryLot struct {
	ID                string             `json:"id"`
	IngredientID      string             `json:"ingredientId"`
	QuantityRemaining units.BaseQuantity `json:"quantityRemaining"`
	Unit              string             `json:"unit"`
	ReceivedAt        time.Time          `json:"receivedAt"`
	ExpiresAt         *time.Time         `json:"expiresAt,omitempty"`
	Supplier          string             `json:"supplier,omitempty"`
}

// LotRecord 入庫時的原始批次資料
type LotRecord struct {
	ID           string     `json:"id" yaml:"id"`
	IngredientID string     `json:"ingredientId" yaml:"ingredient_id" binding:"required"`
	Quantity     float64    `json:"quantity" yaml:"quantity"`
	Unit         string     `json:"unit" yaml:"unit" binding:"required"`
	ReceivedAt   time.Time  `json:"receivedAt" yaml:"received_at"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty" yaml:"expires_at,omitempty"`
	Supplier     string     `json:"supplier,omitempty" yaml:"supplier,omitempty"`
}

// Validate 檢查必要欄位
func (r LotRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("lot id is required")
	}
	if r.IngredientID == "" {
		return fmt.Errorf("lot %s: ingredient id is required", r.ID)
	}
	if r.Unit == "" {
		return fmt.Errorf("lot %s: unit is required", r.ID)
	}
	if r.Quantity < 0 {
		return fmt.Errorf("lot %s: quantity cannot be negative, got %v", r.ID, r.Quantity)
	}
	if r.ExpiresAt != nil && !r.ReceivedAt.IsZero() && r.ExpiresAt.Before(r.ReceivedAt) {
		return fmt.Errorf("lot %s: expires before it was received", r.ID)
	}
	return nil
}

// NewInventoryLot 入庫時轉換單位並建立批次
func NewInventoryLot(r LotRecord, ing Ingredient) (InventoryLot, error) {
	if err := r.Validate(); err != nil {
		return InventoryLot{}, err
	}
	if r.IngredientID != ing.ID {
		return InventoryLot{}, fmt.Errorf("lot %s: ingredient mismatch %s != %s", r.ID, r.IngredientID, ing.ID)
	}
	q, err := units.Normalize(r.Quantity, r.Unit, ing.BaseUnit)
	if err != nil {
		return InventoryLot{}, fmt.Errorf("lot %s: %w", r.ID, err)
	}
	return InventoryLot{
		ID:                r.ID,
		IngredientID:      r.IngredientID,
		QuantityRemaining: q,
		Unit:              r.Unit,
		ReceivedAt:        r.ReceivedAt,
		ExpiresAt:         r.ExpiresAt,
		Supplier:          r.Supplier,
	}, nil
}

// Consume 扣減數量，不足時拒絕而非截斷
func (l InventoryLot) Consume(q units.BaseQuantity) (InventoryLot, error) {
	if q < 0 {
		return l, fmt.Errorf("lot %s: cannot consume negative quantity %d", l.ID, q)
	}
	if q > l.QuantityRemaining {
		return l, fmt.Errorf("lot %s: need %d, have %d: %w", l.ID, q, l.QuantityRemaining, ErrInsufficientQuantity)
	}
	l.QuantityRemaining -= q
	return l, nil
}

// ExpiredAt 批次在 asOf 時是否已過期（到期當下仍可用）
func (l InventoryLot) ExpiredAt(asOf time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(asOf)
}
