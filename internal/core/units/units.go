package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Dimension 物理量維度
type Dimension string

const (
	Mass   Dimension = "mass"
	Volume Dimension = "volume"
	Count  Dimension = "count"
)

// BaseQuantity 以最小單位表示的整數數量（mg、ml、個）
type BaseQuantity int64

// MaxQuantity 單筆數量上限（1e15 mg = 1,000 公噸），超過即拒絕
const MaxQuantity BaseQuantity = 1_000_000_000_000_000

var maxQuantity = decimal.NewFromInt(int64(MaxQuantity))

// ParseDimension 解析維度字串
func ParseDimension(s string) (Dimension, error) {
	switch Dimension(strings.ToLower(strings.TrimSpace(s))) {
	case Mass:
		return Mass, nil
	case Volume:
		return Volume, nil
	case Count:
		return Count, nil
	}
	return "", fmt.Errorf("unknown dimension %q", s)
}

// Valid 檢查維度是否有效
func (d Dimension) Valid() bool {
	return d == Mass || d == Volume || d == Count
}

// BaseUnit 維度對應的最小單位
func (d Dimension) BaseUnit() string {
	switch d {
	case Mass:
		return "mg"
	case Volume:
		return "ml"
	default:
		return "count"
	}
}

type unitDef struct {
	dimension Dimension
	factor    decimal.Decimal // 1 unit = factor base units
}

var unitTable = map[string]unitDef{
	// mass (base = mg)
	"mg": {Mass, decimal.NewFromInt(1)},
	"g":  {Mass, decimal.NewFromInt(1_000)},
	"kg": {Mass, decimal.NewFromInt(1_000_000)},
	"oz": {Mass, decimal.RequireFromString("28349.523125")},
	"lb": {Mass, decimal.RequireFromString("453592.37")},

	// volume (base = ml)
	"ml": {Volume, decimal.NewFromInt(1)},
	"l":  {Volume, decimal.NewFromInt(1_000)},
	"hl": {Volume, decimal.NewFromInt(100_000)},

	// count
	"count": {Count, decimal.NewFromInt(1)},
	"unit":  {Count, decimal.NewFromInt(1)},
	"units": {Count, decimal.NewFromInt(1)},
	"pc":    {Count, decimal.NewFromInt(1)},
	"pcs":   {Count, decimal.NewFromInt(1)},
	"pkg":   {Count, decimal.NewFromInt(1)},
	"each":  {Count, decimal.NewFromInt(1)},
}

func lookup(unit string) (unitDef, bool) {
	def, ok := unitTable[strings.ToLower(strings.TrimSpace(unit))]
	return def, ok
}

// DimensionOf 取得單位所屬維度
func DimensionOf(unit string) (Dimension, error) {
	def, ok := lookup(unit)
	if !ok {
		return "", &UnitError{Kind: ErrUnknownUnit, Unit: unit}
	}
	return def.dimension, nil
}

// Normalize 將數量轉換為原料基本維度的最小單位整數
func Normalize(quantity float64, unit string, base Dimension) (BaseQuantity, error) {
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) || quantity < 0 {
		return 0, &UnitError{Kind: ErrInvalidQuantity, Unit: unit, Expected: base, Quantity: quantity}
	}
	def, ok := lookup(unit)
	if !ok {
		return 0, &UnitError{Kind: ErrUnknownUnit, Unit: unit, Expected: base, Quantity: quantity}
	}
	if def.dimension != base {
		return 0, &UnitError{Kind: ErrIncompatible, Unit: unit, Expected: base, Actual: def.dimension, Quantity: quantity}
	}
	v := decimal.NewFromFloat(quantity).Mul(def.factor).Round(0)
	if v.GreaterThan(maxQuantity) {
		return 0, &UnitError{Kind: ErrInvalidQuantity, Unit: unit, Expected: base, Quantity: quantity}
	}
	return BaseQuantity(v.IntPart()), nil
}

// Amount 含單位的數量，用於設定檔中的門檻值
type Amount struct {
	Quantity float64 `json:"quantity" yaml:"quantity"`
	Unit     string  `json:"unit" yaml:"unit"`
}

// ParseAmount 解析 "2kg"、"2.5 L"、"12 pcs" 這類字串
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, func(r rune) bool {
		return !(r >= '0' && r <= '9') && r != '.' && r != '-' && r != '+'
	})
	if i <= 0 {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	q, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	unit := strings.TrimSpace(s[i:])
	if _, ok := lookup(unit); !ok {
		return Amount{}, &UnitError{Kind: ErrUnknownUnit, Unit: unit}
	}
	return Amount{Quantity: q, Unit: unit}, nil
}

// Normalize 轉換為最小單位
func (a Amount) Normalize(base Dimension) (BaseQuantity, error) {
	return Normalize(a.Quantity, a.Unit, base)
}

func (a Amount) String() string {
	return strconv.FormatFloat(a.Quantity, 'f', -1, 64) + " " + a.Unit
}

// Format 將最小單位數量格式化為易讀字串，僅用於訊息
func Format(q BaseQuantity, d Dimension) string {
	v := decimal.NewFromInt(int64(q))
	switch d {
	case Mass:
		if q >= 1_000_000 || q <= -1_000_000 {
			return v.Div(decimal.NewFromInt(1_000_000)).Round(3).String() + " kg"
		}
		if q >= 1_000 || q <= -1_000 {
			return v.Div(decimal.NewFromInt(1_000)).Round(3).String() + " g"
		}
		return v.String() + " mg"
	case Volume:
		if q >= 1_000 || q <= -1_000 {
			return v.Div(decimal.NewFromInt(1_000)).Round(3).String() + " L"
		}
		return v.String() + " ml"
	default:
		return v.String() + " count"
	}
}

// ScaleUp 計算 ⌈q × ratio⌉，部分單位不可視為可用；結果不超過 math.MaxInt64
func ScaleUp(q BaseQuantity, ratio float64) BaseQuantity {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) || ratio <= 0 {
		return 0
	}
	v := decimal.NewFromInt(int64(q)).Mul(decimal.NewFromFloat(ratio)).Ceil()
	if v.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return math.MaxInt64
	}
	return BaseQuantity(v.IntPart())
}

// Add 飽和加法，加總不會溢位成負值
func Add(a, b BaseQuantity) BaseQuantity {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

// ScaleDown 計算 ⌊q ÷ ratio⌋
func ScaleDown(q BaseQuantity, ratio float64) BaseQuantity {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return 0
	}
	r := decimal.NewFromFloat(ratio)
	if !r.IsPositive() {
		return 0
	}
	v := decimal.NewFromInt(int64(q)).DivRound(r, 8).Floor()
	return BaseQuantity(v.IntPart())
}

// Display 以 kg、L 或個為單位的精確數量，用於估值
func Display(q BaseQuantity, d Dimension) decimal.Decimal {
	v := decimal.NewFromInt(int64(q))
	switch d {
	case Mass:
		return v.Div(decimal.NewFromInt(1_000_000))
	case Volume:
		return v.Div(decimal.NewFromInt(1_000))
	default:
		return v
	}
}
