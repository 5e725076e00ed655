package parsers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chative-sales/server/internal/agent/model"
	errx "github.com/chative-sales/server/internal/core/error"
	logx "github.com/chative-sales/server/pkg/logger"
)

// Keys as requested by the extraction prompt, plus the Vietnamese names some
// model runs still emit.
var (
	ordersKeys   = []string{"orders", "đơn hàng"}
	phoneKeys    = []string{"phone", "số điện thoại"}
	addressKeys  = []string{"address", "địa chỉ giao hàng"}
	sizeKeys     = []string{"size", "kích thước"}
	colorKeys    = []string{"color", "màu sắc"}
	quantityKeys = []string{"quantity", "số bộ"}
)

// unknownMarkers are values the model uses for "not provided".
var unknownMarkers = map[string]struct{}{
	"":                 {},
	"null":             {},
	"none":             {},
	"unknown":          {},
	"n/a":              {},
	model.UnknownValue: {},
}

// ParseConversationStatus decodes extractor output into a status. Any
// failure wraps errx.ErrExtractionParse; the caller decides the fallback.
func ParseConversationStatus(content string) (status model.ConversationStatus, err error) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "status_parser").Msgf("panic recovered: %v", r)
			status = model.ConversationStatus{}
			err = errx.WrapExtraction(fmt.Errorf("status parser panic: %v", r))
		}
	}()

	obj, err := extractObject(content)
	if err != nil {
		return model.ConversationStatus{}, errx.WrapExtraction(err)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(obj)))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return model.ConversationStatus{}, errx.WrapExtraction(fmt.Errorf("decode status: %w", err))
	}

	status = model.EmptyStatus()

	if raw, ok := lookup(doc, ordersKeys); ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return model.ConversationStatus{}, errx.WrapExtraction(fmt.Errorf("orders is %T, want array", raw))
		}
		if len(list) > maxOrders {
			return model.ConversationStatus{}, errx.WrapExtraction(fmt.Errorf("too many orders: %d", len(list)))
		}
		for i, item := range list {
			o, err := parseOrder(item)
			if err != nil {
				return model.ConversationStatus{}, errx.WrapExtraction(fmt.Errorf("orders[%d]: %w", i+1, err))
			}
			status.Orders = append(status.Orders, o)
		}
	}

	if status.Phone, err = textSlot(doc, phoneKeys); err != nil {
		return model.ConversationStatus{}, errx.WrapExtraction(fmt.Errorf("phone: %w", err))
	}
	if status.Address, err = textSlot(doc, addressKeys); err != nil {
		return model.ConversationStatus{}, errx.WrapExtraction(fmt.Errorf("address: %w", err))
	}
	return status, nil
}

func parseOrder(item any) (model.OrderSlots, error) {
	m, ok := item.(map[string]any)
	if !ok {
		return model.OrderSlots{}, fmt.Errorf("order is %T, want object", item)
	}
	var (
		o   model.OrderSlots
		err error
	)
	if o.Size, err = textSlot(m, sizeKeys); err != nil {
		return o, fmt.Errorf("size: %w", err)
	}
	if o.Color, err = textSlot(m, colorKeys); err != nil {
		return o, fmt.Errorf("color: %w", err)
	}
	if o.Quantity, err = quantitySlot(m); err != nil {
		return o, fmt.Errorf("quantity: %w", err)
	}
	return o, nil
}

func lookup(m map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// textSlot reads a scalar slot. Numbers are kept as text ("90"); blank and
// unknown markers become nil.
func textSlot(m map[string]any, keys []string) (*string, error) {
	raw, _ := lookup(m, keys)
	var s string
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		s = v
	case json.Number:
		s = v.String()
	default:
		return nil, fmt.Errorf("unexpected %T", raw)
	}
	s = strings.TrimSpace(s)
	if len(s) > maxValueLen {
		return nil, fmt.Errorf("value too long")
	}
	if isUnknown(s) {
		return nil, nil
	}
	return &s, nil
}

// quantitySlot keeps whatever the model produced; parsing happens at pricing time.
func quantitySlot(m map[string]any) (*model.Quantity, error) {
	raw, _ := lookup(m, quantityKeys)
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case json.Number:
		return model.RawQuantity(v.String()), nil
	case string:
		s := strings.TrimSpace(v)
		if len(s) > maxValueLen {
			return nil, fmt.Errorf("value too long")
		}
		if isUnknown(s) {
			return nil, nil
		}
		return model.RawQuantity(s), nil
	default:
		return nil, fmt.Errorf("unexpected %T", raw)
	}
}

func isUnknown(s string) bool {
	_, ok := unknownMarkers[strings.ToLower(s)]
	return ok
}
