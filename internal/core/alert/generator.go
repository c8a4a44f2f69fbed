package alert

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"brew-planner/internal/core/domain"
	"brew-planner/internal/core/inventory"
	"brew-planner/internal/core/units"
	"brew-planner/internal/pkg/common"
)

// DefaultWindowDays 未指定時的到期提醒天數
const DefaultWindowDays = 14

var errWindow = errors.New("expiry window must be positive")

// Options 警示產生設定
type Options struct {
	DefaultWindowDays int
	IncludeExpired    bool
	// Names 以 id 查詢原料名稱，可為 nil
	Names func(id string) string
}

// Generator 警示產生器，與特定配方無關
type Generator struct {
	opts Options
}

// NewGenerator 創建警示產生器
func NewGenerator(opts Options) *Generator {
	if opts.DefaultWindowDays <= 0 {
		opts.DefaultWindowDays = DefaultWindowDays
	}
	return &Generator{opts: opts}
}

// Window 解析請求的天數；非正值改用預設值並回傳 ConfigurationError
func (g *Generator) Window(windowDays int) (int, error) {
	if windowDays > 0 {
		return windowDays, nil
	}
	return g.opts.DefaultWindowDays, common.NewConfigurationError(
		"windowDays", strconv.Itoa(g.opts.DefaultWindowDays), errWindow)
}

type keyed struct {
	alert domain.Alert
	key   int64
}

// Generate 掃描庫存產生警示，輸出順序固定且與 map 走訪順序無關
func (g *Generator) Generate(stock inventory.Stock, asOf time.Time, windowDays int) []domain.Alert {
	window, err := g.Window(windowDays)
	if err != nil {
		common.LogDebug(err.Error())
	}
	horizon := asOf.Add(time.Duration(window) * 24 * time.Hour)

	var out []keyed
	for id, st := range stock {
		name := g.name(id)

		if st.LowStockThreshold != nil && st.TotalQuantity < *st.LowStockThreshold {
			out = append(out, keyed{
				key: int64(st.TotalQuantity),
				alert: domain.Alert{
					Kind:           domain.AlertLowStock,
					IngredientID:   id,
					IngredientName: name,
					Severity:       domain.SeverityWarning,
					Message: fmt.Sprintf("%s is low: %s on hand, threshold %s", label(id, name),
						units.Format(st.TotalQuantity, st.Dimension), units.Format(*st.LowStockThreshold, st.Dimension)),
					TriggeringLotIDs: lotIDs(st.Lots, func(l inventory.LotView) bool { return l.Quantity > 0 }),
				},
			})
		}

		if st.EarliestExpiry != nil && !st.EarliestExpiry.After(horizon) {
			soon := func(l inventory.LotView) bool {
				return l.Quantity > 0 && l.ExpiresAt != nil && !l.ExpiresAt.After(horizon)
			}
			out = append(out, keyed{
				key: st.EarliestExpiry.UnixNano(),
				alert: domain.Alert{
					Kind:           domain.AlertExpiringSoon,
					IngredientID:   id,
					IngredientName: name,
					Severity:       domain.SeverityInfo,
					Message: fmt.Sprintf("%s: %s expires by %s", label(id, name),
						units.Format(sum(st.Lots, soon), st.Dimension), st.EarliestExpiry.Format(time.DateOnly)),
					TriggeringLotIDs: lotIDs(st.Lots, soon),
				},
			})
		}

		if g.opts.IncludeExpired {
			held := func(l inventory.LotView) bool { return l.Quantity > 0 }
			ids := lotIDs(st.RecentlyExpired, held)
			if len(ids) > 0 {
				first := st.RecentlyExpired[0].ExpiresAt
				for _, l := range st.RecentlyExpired {
					if l.Quantity > 0 {
						first = l.ExpiresAt
						break
					}
				}
				out = append(out, keyed{
					key: first.UnixNano(),
					alert: domain.Alert{
						Kind:           domain.AlertExpired,
						IngredientID:   id,
						IngredientName: name,
						Severity:       domain.SeverityWarning,
						Message: fmt.Sprintf("%s: %s expired since %s", label(id, name),
							units.Format(sum(st.RecentlyExpired, held), st.Dimension), first.Format(time.DateOnly)),
						TriggeringLotIDs: ids,
					},
				})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ra, rb := a.alert.Severity.Rank(), b.alert.Severity.Rank(); ra != rb {
			return ra < rb
		}
		if ka, kb := kindRank(a.alert.Kind), kindRank(b.alert.Kind); ka != kb {
			return ka < kb
		}
		if a.key != b.key {
			return a.key < b.key
		}
		return a.alert.IngredientID < b.alert.IngredientID
	})

	alerts := make([]domain.Alert, len(out))
	for i, k := range out {
		alerts[i] = k.alert
	}
	return alerts
}

func (g *Generator) name(id string) string {
	if g.opts.Names == nil {
		return ""
	}
	return g.opts.Names(id)
}

func kindRank(k domain.AlertKind) int {
	switch k {
	case domain.AlertLowStock:
		return 0
	case domain.AlertExpired:
		return 1
	case domain.AlertExpiringSoon:
		return 2
	}
	return 3
}

func label(id, name string) string {
	if name != "" {
		return name
	}
	return id
}

func lotIDs(lots []inventory.LotView, keep func(inventory.LotView) bool) []string {
	ids := []string{}
	for _, l := range lots {
		if keep(l) {
			ids = append(ids, l.LotID)
		}
	}
	return ids
}

func sum(lots []inventory.LotView, keep func(inventory.LotView) bool) units.BaseQuantity {
	var total units.BaseQuantity
	for _, l := range lots {
		if keep(l) {
			total = units.Add(total, l.Quantity)
		}
	}
	return total
}
