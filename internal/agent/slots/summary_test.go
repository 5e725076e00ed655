package slots

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative-sales/server/internal/agent/model"
)

func TestPrice(t *testing.T) {
	cases := []struct {
		qty   int
		unit  int64
		total int64
	}{
		{1, 175000, 175000},
		{2, 170000, 340000},
		{3, 170000, 510000},
	}
	for _, tc := range cases {
		unit, total := Price(tc.qty)
		assert.Equal(t, tc.unit, unit, "qty=%d", tc.qty)
		assert.Equal(t, tc.total, total, "qty=%d", tc.qty)
	}
}

func TestSummarize_FirstValueWinsQuantitySums(t *testing.T) {
	status := model.ConversationStatus{
		Orders: []model.OrderSlots{
			{Size: model.Str("90")},
			{Size: model.Str("100"), Color: model.Str("trắng"), Quantity: model.QuantityOf(2)},
		},
	}

	s := Summarize(status)
	assert.Equal(t, "90", s.Size)
	assert.Equal(t, "trắng", s.Color)
	assert.Equal(t, 2, s.Quantity)
	assert.Equal(t, int64(340000), s.TotalPrice)
	assert.Equal(t, model.UnknownValue, s.Phone)
	assert.Equal(t, model.UnknownValue, s.Address)
}

func TestSummarize_QuantityDefaults(t *testing.T) {
	s := Summarize(model.ConversationStatus{})
	assert.Equal(t, 1, s.Quantity)
	assert.Equal(t, int64(175000), s.TotalPrice)
	assert.Equal(t, model.UnknownValue, s.Size)

	s = Summarize(model.ConversationStatus{Orders: []model.OrderSlots{
		{Quantity: model.RawQuantity("vài bộ")},
		{Quantity: model.QuantityOf(3)},
	}})
	assert.Equal(t, 3, s.Quantity)
	assert.Equal(t, int64(510000), s.TotalPrice)

	s = Summarize(model.ConversationStatus{Orders: []model.OrderSlots{{Quantity: model.QuantityOf(0)}}})
	assert.Equal(t, 1, s.Quantity)
}

func TestSummarize_IgnoresOutOfRangeQuantities(t *testing.T) {
	for _, raw := range []string{"1e20", "60000000000000", "-2", "0"} {
		s := Summarize(model.ConversationStatus{Orders: []model.OrderSlots{{Quantity: model.RawQuantity(raw)}}})
		assert.Equal(t, 1, s.Quantity, raw)
		assert.Equal(t, int64(175000), s.TotalPrice, raw)
	}

	s := Summarize(model.ConversationStatus{Orders: []model.OrderSlots{
		{Quantity: model.RawQuantity("-2")},
		{Quantity: model.QuantityOf(3)},
	}})
	assert.Equal(t, 3, s.Quantity)
	assert.Equal(t, int64(510000), s.TotalPrice)
}

func TestSummarize_CapsTotalQuantity(t *testing.T) {
	orders := make([]model.OrderSlots, 60)
	for i := range orders {
		orders[i] = model.OrderSlots{Quantity: model.QuantityOf(model.MaxQuantity)}
	}
	s := Summarize(model.ConversationStatus{Orders: orders})
	assert.Equal(t, maxTotalQuantity, s.Quantity)
	assert.Equal(t, int64(maxTotalQuantity)*BulkUnitPrice, s.TotalPrice)
	assert.Positive(t, s.TotalPrice)
}

func TestPrice_ClampsQuantity(t *testing.T) {
	unit, total := Price(-5)
	assert.Equal(t, UnitPrice, unit)
	assert.Zero(t, total)

	_, total = Price(int(^uint(0) >> 1))
	assert.Equal(t, int64(maxTotalQuantity)*BulkUnitPrice, total)
}

func TestSummarize_DoesNotMutateQuantity(t *testing.T) {
	status := model.ConversationStatus{Orders: []model.OrderSlots{{Size: model.Str("90")}}}
	Summarize(status)
	assert.Nil(t, status.Orders[0].Quantity)
}

func TestComposeComplete(t *testing.T) {
	status := model.ConversationStatus{
		Orders:  []model.OrderSlots{complete("90", "trắng", 2)},
		Phone:   model.Str("0912345678"),
		Address: model.Str("12 Lê Lợi, Q1"),
	}

	info := ComposeComplete(model.IntentProvidingInfo, status)
	require.NotNil(t, info.OrderSummary)
	assert.Equal(t, model.IntentProvidingInfo, info.Intent)
	assert.Contains(t, info.AnswerText, "- Kích thước: 90")
	assert.Contains(t, info.AnswerText, "- Số bộ: 2")
	assert.Contains(t, info.AnswerText, "- Số điện thoại: 0912345678")
	assert.Contains(t, info.AnswerText, "Tổng tiền: 340,000 VNĐ")
	assert.Contains(t, info.AnswerText, "3-4 ngày")
	assert.Equal(t, anythingElse, info.FollowUpQuestion)

	confirm := ComposeComplete(model.IntentConfirmingOrder, status)
	assert.Equal(t, confirmAnswer, confirm.AnswerText)
	assert.Equal(t, confirmQuestion, confirm.FollowUpQuestion)
	assert.Equal(t, int64(340000), confirm.OrderSummary.TotalPrice)
}

func TestComposeComplete_OffTopicIgnoresSummary(t *testing.T) {
	for _, status := range []model.ConversationStatus{
		{},
		{Orders: []model.OrderSlots{complete("120", "xanh cốm", 5)}, Phone: model.Str("1"), Address: model.Str("2")},
	} {
		r := ComposeComplete(model.IntentOffTopic, status)
		assert.Equal(t, stallAnswer, r.AnswerText)
		assert.Equal(t, stallQuestion, r.FollowUpQuestion)
	}

	r := ComposeComplete(model.Intent("garbage"), model.ConversationStatus{})
	assert.Equal(t, model.IntentOffTopic, r.Intent)
	assert.Equal(t, stallAnswer, r.AnswerText)
}

func TestFormatVND(t *testing.T) {
	assert.Equal(t, "175,000 VNĐ", FormatVND(175000))
	assert.Equal(t, "1,020,000 VNĐ", FormatVND(1020000))
}
