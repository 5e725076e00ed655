package slots

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/chative-sales/server/internal/agent/model"
)

const (
	confirmAnswer   = "Dạ em cảm ơn chị nhiều ạ 💖 Em sẽ tiến hành lên đơn ngay cho mình nhé!"
	confirmQuestion = "Chị có cần đổi gì thêm không ạ, ví dụ số bộ hay màu sắc?"
	stallAnswer     = "Chị chờ em chút ạ 🫶"
	stallQuestion   = "Không biết chị muốn cung cấp thêm thông tin hay xác nhận đặt hàng ạ?"
	anythingElse    = "Chị có cần em hỗ trợ gì thêm không ạ?"
)

// FormatVND renders an amount with thousands separators, e.g. 340,000 VNĐ.
func FormatVND(amount int64) string {
	return humanize.Comma(amount) + " VNĐ"
}

// ComposeComplete builds the reply for a fully resolved status.
func ComposeComplete(intent model.Intent, status model.ConversationStatus) *model.ComposedReply {
	summary := Summarize(status)
	reply := &model.ComposedReply{OrderSummary: &summary, Intent: intent}

	switch intent {
	case model.IntentProvidingInfo:
		reply.AnswerText = restate(summary)
		reply.FollowUpQuestion = anythingElse
	case model.IntentConfirmingOrder:
		reply.AnswerText = confirmAnswer
		reply.FollowUpQuestion = confirmQuestion
	default:
		reply.Intent = model.IntentOffTopic
		reply.AnswerText = stallAnswer
		reply.FollowUpQuestion = stallQuestion
	}
	return reply
}

func restate(s model.OrderSummary) string {
	var b strings.Builder
	b.WriteString("Dạ em đã ghi nhận đầy đủ thông tin đơn hàng của mình ạ:\n")
	fmt.Fprintf(&b, "- Kích thước: %s\n", s.Size)
	fmt.Fprintf(&b, "- Màu sắc: %s\n", s.Color)
	fmt.Fprintf(&b, "- Số bộ: %d\n", s.Quantity)
	fmt.Fprintf(&b, "- Số điện thoại: %s\n", s.Phone)
	fmt.Fprintf(&b, "- Địa chỉ giao hàng: %s\n", s.Address)
	fmt.Fprintf(&b, "👉 Tổng tiền: %s\n\n", FormatVND(s.TotalPrice))
	fmt.Fprintf(&b, "Dạ em gửi khoảng 3-4 ngày chị nhận được, chị nhận thanh toán giúp em %s và phí ship ạ", FormatVND(s.TotalPrice))
	return b.String()
}
