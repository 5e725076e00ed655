package parsers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chative-sales/server/internal/agent/model"
	errx "github.com/chative-sales/server/internal/core/error"
	logx "github.com/chative-sales/server/pkg/logger"
)

type collectReply struct {
	AnswerOnly      string `json:"answer_only"`
	QuestionAskNext string `json:"question_ask_next"`
}

// ParseCollectReply decodes the generator's {answer_only, question_ask_next} document.
func ParseCollectReply(content string) (reply *model.ComposedReply, err error) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "reply_parser").Msgf("panic recovered: %v", r)
			reply = nil
			err = errx.WrapExtraction(fmt.Errorf("reply parser panic: %v", r))
		}
	}()

	obj, err := extractObject(content)
	if err != nil {
		return nil, errx.WrapExtraction(err)
	}

	var raw collectReply
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, errx.WrapExtraction(fmt.Errorf("decode reply: %w", err))
	}

	answer := strings.TrimSpace(raw.AnswerOnly)
	question := strings.TrimSpace(raw.QuestionAskNext)
	if answer == "" && question == "" {
		return nil, errx.WrapExtraction(fmt.Errorf("reply has neither answer_only nor question_ask_next"))
	}
	return &model.ComposedReply{AnswerText: answer, FollowUpQuestion: question}, nil
}

// ParseIntent maps the classifier output to an intent by its first digit.
// Anything other than 1 or 2 is off topic.
func ParseIntent(content string) model.Intent {
	for _, r := range content {
		if r < '0' || r > '9' {
			continue
		}
		switch r {
		case '1':
			return model.IntentProvidingInfo
		case '2':
			return model.IntentConfirmingOrder
		default:
			return model.IntentOffTopic
		}
	}
	return model.IntentOffTopic
}
