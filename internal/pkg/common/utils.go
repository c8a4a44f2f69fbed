package common

import (
	"github.com/google/uuid"
)

// GenerateUUID 生成 UUID
func GenerateUUID() string {
	return uuid.New().String()
}

// NewLotID 生成批次 id
func NewLotID() string {
	return "lot-" + uuid.New().String()
}

// NewMovementID 生成庫存異動 id
func NewMovementID() string {
	return "mv-" + uuid.New().String()
}
