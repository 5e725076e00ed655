package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Field names one slot of the order schema.
type Field string

const (
	FieldNone     Field = ""
	FieldSize     Field = "size"
	FieldColor    Field = "color"
	FieldQuantity Field = "quantity"
	FieldPhone    Field = "phone"
	FieldAddress  Field = "address"
	// FieldPhoneAndAddress is asked when both contact fields are absent; they are collected together.
	FieldPhoneAndAddress Field = "phone_and_address"
)

// OrderFields lists per-order slots in elicitation priority.
var OrderFields = []Field{FieldSize, FieldColor, FieldQuantity}

// Label is the Vietnamese name used in prompts.
func (f Field) Label() string {
	switch f {
	case FieldSize:
		return "kích thước"
	case FieldColor:
		return "màu sắc"
	case FieldQuantity:
		return "số bộ"
	case FieldPhone:
		return "số điện thoại"
	case FieldAddress:
		return "địa chỉ giao hàng"
	case FieldPhoneAndAddress:
		return "số điện thoại & địa chỉ giao hàng"
	default:
		return ""
	}
}

// MissingField points at the next slot to elicit. The zero value means nothing is missing.
type MissingField struct {
	// OrderIndex is 1-based for per-order fields and 0 for global fields.
	OrderIndex int
	Field      Field
}

// NoneMissing is the resolved pointer.
var NoneMissing = MissingField{}

func (m MissingField) IsNone() bool { return m.Field == FieldNone }

func (m MissingField) String() string {
	switch {
	case m.IsNone():
		return "none"
	case m.OrderIndex > 0:
		return fmt.Sprintf("orders[%d].%s", m.OrderIndex, m.Field)
	default:
		return string(m.Field)
	}
}

// Label renders the pointer for the generation prompt.
func (m MissingField) Label() string {
	if m.IsNone() {
		return ""
	}
	if m.OrderIndex > 0 {
		return fmt.Sprintf("%s (đơn hàng %d)", m.Field.Label(), m.OrderIndex)
	}
	return m.Field.Label()
}

// Quantity keeps the extracted quantity as the model produced it so that an
// unparseable value stays distinguishable from an absent one.
type Quantity struct {
	raw string
}

// QuantityOf returns a quantity holding n.
func QuantityOf(n int) *Quantity {
	return &Quantity{raw: strconv.Itoa(n)}
}

// RawQuantity returns a quantity holding an arbitrary extracted value.
func RawQuantity(s string) *Quantity {
	return &Quantity{raw: s}
}

func (q *Quantity) Raw() string {
	if q == nil {
		return ""
	}
	return q.raw
}

// MaxQuantity is the largest number of sets one order line may carry.
const MaxQuantity = 10000

// Int parses the quantity. Integral floats such as "2.0" are accepted.
// Values outside 1..MaxQuantity are reported as unparseable.
func (q *Quantity) Int() (int, bool) {
	if q == nil {
		return 0, false
	}
	s := strings.TrimSpace(q.raw)
	if n, err := strconv.Atoi(s); err == nil {
		return n, n >= 1 && n <= MaxQuantity
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f < 1 || f > MaxQuantity {
		return 0, false
	}
	return int(f), true
}

func (q *Quantity) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		q.raw = strings.TrimSpace(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		// keep odd literals (true, {}) as unparseable text
		q.raw = string(b)
		return nil
	}
	q.raw = n.String()
	return nil
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	if n, ok := (&q).Int(); ok {
		return []byte(strconv.Itoa(n)), nil
	}
	return json.Marshal(q.raw)
}

// OrderSlots is one line item.
type OrderSlots struct {
	Size     *string   `json:"size"`
	Color    *string   `json:"color"`
	Quantity *Quantity `json:"quantity"`
}

// Missing reports whether f is absent on this order.
func (o OrderSlots) Missing(f Field) bool {
	switch f {
	case FieldSize:
		return o.Size == nil
	case FieldColor:
		return o.Color == nil
	case FieldQuantity:
		return o.Quantity == nil
	default:
		return false
	}
}

// ConversationStatus is derived from the full transcript on every turn.
type ConversationStatus struct {
	Orders  []OrderSlots `json:"orders"`
	Phone   *string      `json:"phone"`
	Address *string      `json:"address"`
}

// EmptyStatus is what the extractor degrades to on malformed output.
func EmptyStatus() ConversationStatus {
	return ConversationStatus{Orders: []OrderSlots{}}
}

// JSON renders the status document as handed to the response model.
func (s ConversationStatus) JSON() string {
	if s.Orders == nil {
		s.Orders = []OrderSlots{}
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Str is a helper for building optional text slots.
func Str(s string) *string { return &s }
