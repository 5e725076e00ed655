// Package slots holds the deterministic order-state logic: which field to ask
// for next, and how a completed status is summarised and priced.
package slots

import "github.com/chative-sales/server/internal/agent/model"

// blankOrder stands in for an empty order list during resolution only.
var blankOrder = model.OrderSlots{Quantity: model.QuantityOf(1)}

// Resolve returns the next field to elicit.
// Orders are walked first (size, color, quantity each), then phone and address.
// A missing phone with a missing address yields FieldPhoneAndAddress.
func Resolve(status model.ConversationStatus) model.MissingField {
	orders := status.Orders
	if len(orders) == 0 {
		orders = []model.OrderSlots{blankOrder}
	}

	for i, order := range orders {
		for _, f := range model.OrderFields {
			if order.Missing(f) {
				return model.MissingField{OrderIndex: i + 1, Field: f}
			}
		}
	}

	if status.Phone == nil {
		if status.Address == nil {
			return model.MissingField{Field: model.FieldPhoneAndAddress}
		}
		return model.MissingField{Field: model.FieldPhone}
	}
	if status.Address == nil {
		return model.MissingField{Field: model.FieldAddress}
	}
	return model.NoneMissing
}
