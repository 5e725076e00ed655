package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative-sales/server/internal/agent/model"
	errx "github.com/chative-sales/server/internal/core/error"
)

func TestParseConversationStatus_Full(t *testing.T) {
	content := "```json\n" + `{
  "orders": [
    {"size": "90", "color": null, "quantity": null},
    {"size": 100, "color": "trắng", "quantity": 2}
  ],
  "phone": "0912345678",
  "address": null
}` + "\n```"

	st, err := ParseConversationStatus(content)
	require.NoError(t, err)
	require.Len(t, st.Orders, 2)

	assert.Equal(t, "90", *st.Orders[0].Size)
	assert.Nil(t, st.Orders[0].Color)
	assert.Nil(t, st.Orders[0].Quantity)

	assert.Equal(t, "100", *st.Orders[1].Size)
	assert.Equal(t, "trắng", *st.Orders[1].Color)
	n, ok := st.Orders[1].Quantity.Int()
	require.True(t, ok)
	assert.Equal(t, 2, n)

	assert.Equal(t, "0912345678", *st.Phone)
	assert.Nil(t, st.Address)
}

func TestParseConversationStatus_ProseAroundObject(t *testing.T) {
	st, err := ParseConversationStatus(`Kết quả: {"orders": [], "phone": null, "address": "12 Lê Lợi"} xong.`)
	require.NoError(t, err)
	assert.Empty(t, st.Orders)
	assert.NotNil(t, st.Orders)
	assert.Equal(t, "12 Lê Lợi", *st.Address)
}

func TestParseConversationStatus_VietnameseKeys(t *testing.T) {
	st, err := ParseConversationStatus(`{"đơn hàng": [{"kích thước": "80", "màu sắc": "đen", "số bộ": 1}], "số điện thoại": null, "địa chỉ giao hàng": null}`)
	require.NoError(t, err)
	require.Len(t, st.Orders, 1)
	assert.Equal(t, "80", *st.Orders[0].Size)
	assert.Equal(t, "đen", *st.Orders[0].Color)
	assert.Equal(t, "1", st.Orders[0].Quantity.Raw())
}

func TestParseConversationStatus_UnknownMarkersAreAbsent(t *testing.T) {
	st, err := ParseConversationStatus(`{"orders": [{"size": "  ", "color": "chưa rõ", "quantity": "unknown"}], "phone": "null", "address": ""}`)
	require.NoError(t, err)
	require.Len(t, st.Orders, 1)
	assert.Nil(t, st.Orders[0].Size)
	assert.Nil(t, st.Orders[0].Color)
	assert.Nil(t, st.Orders[0].Quantity)
	assert.Nil(t, st.Phone)
	assert.Nil(t, st.Address)
}

func TestParseConversationStatus_KeepsUnparseableQuantity(t *testing.T) {
	st, err := ParseConversationStatus(`{"orders": [{"size": "90", "color": "hồng", "quantity": "hai"}]}`)
	require.NoError(t, err)
	require.NotNil(t, st.Orders[0].Quantity)
	assert.Equal(t, "hai", st.Orders[0].Quantity.Raw())
	_, ok := st.Orders[0].Quantity.Int()
	assert.False(t, ok)
}

func TestParseConversationStatus_Failures(t *testing.T) {
	cases := map[string]string{
		"empty":         "",
		"no object":     "xin lỗi, em không hiểu",
		"broken json":   `{"orders": [}`,
		"orders scalar": `{"orders": "90"}`,
		"order scalar":  `{"orders": ["90"]}`,
		"nested phone":  `{"phone": {"number": "1"}}`,
		"bool size":     `{"orders": [{"size": true}]}`,
		"too large":     "{" + strings.Repeat(" ", maxContentLen) + "}",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConversationStatus(content)
			require.Error(t, err)
			assert.ErrorIs(t, err, errx.ErrExtractionParse)
		})
	}
}

func TestParseConversationStatus_TooManyOrders(t *testing.T) {
	orders := strings.TrimSuffix(strings.Repeat(`{"size":"90"},`, maxOrders+1), ",")
	_, err := ParseConversationStatus(`{"orders": [` + orders + `]}`)
	assert.ErrorIs(t, err, errx.ErrExtractionParse)
}

func TestParseCollectReply(t *testing.T) {
	r, err := ParseCollectReply("```json\n{\"answer_only\": \"Dạ giá 175k ạ\", \"question_ask_next\": \"Bé nhà mình mặc size nào ạ?\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Dạ giá 175k ạ", r.AnswerText)
	assert.Equal(t, "Bé nhà mình mặc size nào ạ?", r.FollowUpQuestion)
	assert.Nil(t, r.OrderSummary)

	r, err = ParseCollectReply(`{"answer_only": "Dạ vâng ạ"}`)
	require.NoError(t, err)
	assert.Equal(t, "Dạ vâng ạ", r.Text())
}

func TestParseCollectReply_Failures(t *testing.T) {
	for _, content := range []string{
		"Dạ giá 175k ạ",
		`{"answer_only": 12}`,
		`{"answer_only": "", "question_ask_next": "  "}`,
		`{"answer_only": "x"`,
	} {
		r, err := ParseCollectReply(content)
		assert.Nil(t, r, content)
		assert.ErrorIs(t, err, errx.ErrExtractionParse, content)
	}
}

func TestParseIntent(t *testing.T) {
	cases := map[string]model.Intent{
		"1":          model.IntentProvidingInfo,
		" 2\n":       model.IntentConfirmingOrder,
		"3":          model.IntentOffTopic,
		"Đáp án: 1.": model.IntentProvidingInfo,
		"21":         model.IntentConfirmingOrder,
		"":           model.IntentOffTopic,
		"không rõ":   model.IntentOffTopic,
		"7":          model.IntentOffTopic,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseIntent(in), "input %q", in)
	}
}
