package model

// Intent is the classifier label used once every slot is filled.
type Intent string

const (
	IntentProvidingInfo   Intent = "providing_info"
	IntentConfirmingOrder Intent = "confirming_order"
	IntentOffTopic        Intent = "off_topic"
)

// UnknownValue is shown in summaries for text slots nobody provided.
const UnknownValue = "chưa rõ"

// OrderSummary aggregates all extracted orders into one priced line.
type OrderSummary struct {
	Size       string `json:"size"`
	Color      string `json:"color"`
	Quantity   int    `json:"quantity"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	UnitPrice  int64  `json:"unit_price"`
	TotalPrice int64  `json:"total_price"`
}

// ComposedReply is the outcome of one turn. A nil *ComposedReply means nothing is sent.
type ComposedReply struct {
	AnswerText       string        `json:"answer"`
	FollowUpQuestion string        `json:"question,omitempty"`
	OrderSummary     *OrderSummary `json:"order_info,omitempty"`
	Intent           Intent        `json:"intent,omitempty"`
}

// Text joins answer and follow-up into the outbound message body.
func (r *ComposedReply) Text() string {
	if r == nil {
		return ""
	}
	if r.FollowUpQuestion == "" {
		return r.AnswerText
	}
	if r.AnswerText == "" {
		return r.FollowUpQuestion
	}
	return r.AnswerText + "\n" + r.FollowUpQuestion
}
