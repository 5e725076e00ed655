package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/chative-sales/server/internal/agent/model"
)

var (
	//go:embed template/extraction_prompt.txt
	extractionPrompt string

	//go:embed template/collect_prompt.txt
	collectPrompt string

	//go:embed template/intent_prompt.txt
	intentPrompt string
)

// CollectInput carries what the generator needs while slots are still missing.
type CollectInput struct {
	Status   model.ConversationStatus
	Pointer  model.MissingField
	Context  []string
	Question string
}

// RenderExtraction renders the slot extraction prompt over the transcript.
func RenderExtraction(ctx context.Context, transcript []string) ([]*schema.Message, error) {
	return render(ctx, "extraction", extractionPrompt, map[string]any{
		"Transcript": strings.Join(transcript, "\n"),
	})
}

// RenderCollect renders the prompt that asks for the next missing slot.
func RenderCollect(ctx context.Context, in CollectInput) ([]*schema.Message, error) {
	return render(ctx, "collect", collectPrompt, map[string]any{
		"Status":   in.Status.JSON(),
		"Missing":  in.Pointer.Label(),
		"Context":  strings.Join(in.Context, "\n"),
		"Question": in.Question,
	})
}

// RenderIntent renders the single-digit intent classifier prompt.
func RenderIntent(ctx context.Context, question string) ([]*schema.Message, error) {
	return render(ctx, "intent", intentPrompt, map[string]any{
		"Question": question,
	})
}

// render goes through the Eino prompt component so prompt callbacks fire.
// Gemini needs a user turn, so the whole instruction is sent as one.
func render(ctx context.Context, name, tpl string, vars map[string]any) ([]*schema.Message, error) {
	t := prompt.FromMessages(
		schema.GoTemplate,
		schema.UserMessage(strings.TrimSpace(tpl)),
	)
	msgs, err := t.Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("%s prompt render: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return nil, fmt.Errorf("%s prompt render: empty result", name)
	}
	return msgs, nil
}
