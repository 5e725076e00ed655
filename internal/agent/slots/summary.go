package slots

import (
	"strings"

	"github.com/chative-sales/server/internal/agent/model"
)

const (
	// UnitPrice applies to a single set.
	UnitPrice int64 = 175000
	// BulkUnitPrice applies per set once more than one set is ordered.
	BulkUnitPrice int64 = 170000
)

// maxTotalQuantity caps the summed quantity so the total stays well inside int64.
const maxTotalQuantity = 50 * model.MaxQuantity

// Price returns the unit and total price for qty sets. qty is clamped to
// 0..maxTotalQuantity.
func Price(qty int) (unit, total int64) {
	qty = min(max(qty, 0), maxTotalQuantity)
	unit = UnitPrice
	if qty > 1 {
		unit = BulkUnitPrice
	}
	return unit, int64(qty) * unit
}

// Summarize collapses all orders into one priced summary.
// Size and color come from the first order that has them; quantities are summed,
// with absent or unparseable values counted as 0 and a zero sum read as 1.
func Summarize(status model.ConversationStatus) model.OrderSummary {
	qty := 0
	for _, o := range status.Orders {
		if n, ok := o.Quantity.Int(); ok {
			qty = min(qty+n, maxTotalQuantity)
		}
	}
	if qty == 0 {
		qty = 1
	}

	unit, total := Price(qty)
	return model.OrderSummary{
		Size:       firstValue(status.Orders, func(o model.OrderSlots) *string { return o.Size }),
		Color:      firstValue(status.Orders, func(o model.OrderSlots) *string { return o.Color }),
		Quantity:   qty,
		Phone:      orUnknown(status.Phone),
		Address:    orUnknown(status.Address),
		UnitPrice:  unit,
		TotalPrice: total,
	}
}

func firstValue(orders []model.OrderSlots, get func(model.OrderSlots) *string) string {
	for _, o := range orders {
		if v := get(o); v != nil && strings.TrimSpace(*v) != "" {
			return *v
		}
	}
	return model.UnknownValue
}

func orUnknown(v *string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return model.UnknownValue
	}
	return *v
}
