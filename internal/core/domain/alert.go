package domain

// AlertKind 警示種類
type AlertKind string

const (
	AlertLowStock     AlertKind = "LowStock"
	AlertExpiringSoon AlertKind = "ExpiringSoon"
	AlertExpired      AlertKind = "Expired"
)

// Severity 嚴重程度
type Severity string

const (
	SeverityWarning Severity = "Warning"
	SeverityInfo    Severity = "Info"
)

// Rank 排序用，數字越小越優先
func (s Severity) Rank() int {
	switch s {
	case SeverityWarning:
		return 0
	case SeverityInfo:
		return 1
	}
	return 2
}

// Alert 由庫存推導出的警示，引擎本身不持久化
type Alert struct {
	Kind             AlertKind `json:"kind"`
	IngredientID     string    `json:"ingredientId"`
	IngredientName   string    `json:"ingredientName,omitempty"`
	Severity         Severity  `json:"severity"`
	Message          string    `json:"message"`
	TriggeringLotIDs []string  `json:"triggeringLotIds"`
}
