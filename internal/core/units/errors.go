package units

import "fmt"

// ErrorKind 單位錯誤種類
type ErrorKind string

const (
	ErrIncompatible    ErrorKind = "incompatible"
	ErrUnknownUnit     ErrorKind = "unknown_unit"
	ErrInvalidQuantity ErrorKind = "invalid_quantity"
)

// UnitError 單位轉換錯誤，屬於呼叫端或資料輸入錯誤，不會被自動修正
type UnitError struct {
	Kind     ErrorKind
	Unit     string
	Expected Dimension
	Actual   Dimension
	Quantity float64
}

func (e *UnitError) Error() string {
	switch e.Kind {
	case ErrIncompatible:
		return fmt.Sprintf("unit %q is %s, expected %s", e.Unit, e.Actual, e.Expected)
	case ErrUnknownUnit:
		return fmt.Sprintf("unknown unit %q", e.Unit)
	default:
		return fmt.Sprintf("invalid quantity %v %s", e.Quantity, e.Unit)
	}
}

// Is 讓 errors.Is 以種類比對
func (e *UnitError) Is(target error) bool {
	t, ok := target.(*UnitError)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}

// ErrIncompatibleUnit 供 errors.Is 使用的哨兵
var ErrIncompatibleUnit = &UnitError{Kind: ErrIncompatible}
