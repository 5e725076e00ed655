package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/chative-sales/server/internal/agent/graph/parsers"
	"github.com/chative-sales/server/internal/agent/graph/prompts"
	"github.com/chative-sales/server/internal/agent/model"
	"github.com/chative-sales/server/internal/agent/slots"
	logx "github.com/chative-sales/server/pkg/logger"
)

const (
	NodeSlotPrompt         = "slot_prompt"
	NodeSlotExtractorModel = "slot_extractor_model"
	NodeSlotParser         = "slot_parser"
	NodeFieldResolver      = "field_resolver"
	NodeContextAssembler   = "context_assembler"
	NodeCollectPrompt      = "collect_prompt"
	NodeCollectModel       = "collect_model"
	NodeCollectParser      = "collect_parser"
	NodeIntentPrompt       = "intent_prompt"
	NodeIntentModel        = "intent_model"
	NodeOrderSummarizer    = "order_summarizer"
)

// TranscriptSource replays the persisted utterances of a conversation, oldest first.
type TranscriptSource interface {
	Transcript(ctx context.Context, conversationID string) ([]string, error)
}

// ContextAssembler builds the grounding text for the response model.
type ContextAssembler interface {
	Assemble(ctx context.Context, query string, transcript []string, pointer model.MissingField) ([]string, error)
}

// NewSlotPromptPreHandler resets per-turn state.
func NewSlotPromptPreHandler() func(context.Context, model.QueryInput, *model.TurnState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.TurnState) (model.QueryInput, error) {
		s.ConversationID = in.ConversationID
		s.Query = in.Query
		s.History = nil
		s.Status = model.EmptyStatus()
		s.Pointer = model.NoneMissing
		s.Context = nil
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewSlotPromptNode loads the transcript and renders the extraction prompt over it.
func NewSlotPromptNode(transcripts TranscriptSource) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.QueryInput) ([]*schema.Message, error) {
		history, err := transcripts.Transcript(ctx, input.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("load transcript: %w", err)
		}

		var transcript []string
		err = compose.ProcessState(ctx, func(_ context.Context, state *model.TurnState) error {
			state.History = history
			transcript = state.Transcript()
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		return prompts.RenderExtraction(ctx, transcript)
	})
}

// NewUsagePostHandler computes and logs usage cost for one model node.
func NewUsagePostHandler(node, modelName string) func(context.Context, *schema.Message, *model.TurnState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.TurnState) (*schema.Message, error) {
		if out == nil || out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
			return out, nil
		}
		usage := out.ResponseMeta.Usage
		inC, outC, totalC := model.ComputeCost(usage, model.ResolvePricing(modelName))
		state.TotalCostUSD += totalC

		logx.Debug().
			Str("conversation_id", state.ConversationID).
			Str("node", node).
			Str("model", modelName).
			Int("prompt_tokens", usage.PromptTokens).
			Int("completion_tokens", usage.CompletionTokens).
			Int("total_tokens", usage.TotalTokens).
			Float64("input_cost_usd", inC).
			Float64("output_cost_usd", outC).
			Float64("total_cost_usd", totalC).
			Float64("turn_cost_usd", state.TotalCostUSD).
			Msg("LLM usage")
		return out, nil
	}
}

// NewSlotParserNode decodes the extractor output. Malformed output degrades
// to an empty status and the turn continues.
func NewSlotParserNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, resp *schema.Message) (model.ConversationStatus, error) {
		if resp == nil {
			logx.Warn().Msg("extractor returned no message; using empty status")
			return model.EmptyStatus(), nil
		}
		status, err := parsers.ParseConversationStatus(resp.Content)
		if err != nil {
			logx.Warn().Err(err).Msg("Error parsing extracted status; using empty status")
			return model.EmptyStatus(), nil
		}
		return status, nil
	})
}

// NewSlotParserPostHandler saves the status to state.
func NewSlotParserPostHandler() func(context.Context, model.ConversationStatus, *model.TurnState) (model.ConversationStatus, error) {
	return func(ctx context.Context, out model.ConversationStatus, state *model.TurnState) (model.ConversationStatus, error) {
		state.Status = out
		return out, nil
	}
}

func NewFieldResolverNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, status model.ConversationStatus) (model.MissingField, error) {
		return slots.Resolve(status), nil
	})
}

// NewFieldResolverPostHandler saves the pointer to state for branch routing.
func NewFieldResolverPostHandler() func(context.Context, model.MissingField, *model.TurnState) (model.MissingField, error) {
	return func(ctx context.Context, out model.MissingField, state *model.TurnState) (model.MissingField, error) {
		state.Pointer = out
		logx.Debug().
			Str("conversation_id", state.ConversationID).
			Str("pointer", out.String()).
			Msg("next missing field resolved")
		return out, nil
	}
}

// NewContextAssemblerNode retrieves against the persisted history; the
// current query is the search key, not a candidate.
func NewContextAssemblerNode(assembler ContextAssembler) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, pointer model.MissingField) ([]string, error) {
		var (
			query   string
			history []string
		)
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.TurnState) error {
			query = state.Query
			history = state.History
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}
		return assembler.Assemble(ctx, query, history, pointer)
	})
}

func NewContextAssemblerPostHandler() func(context.Context, []string, *model.TurnState) ([]string, error) {
	return func(ctx context.Context, out []string, state *model.TurnState) ([]string, error) {
		state.Context = out
		return out, nil
	}
}

// NewComposerCondition routes to the collecting branch while any slot is missing.
func NewComposerCondition() func(context.Context, []string) (string, error) {
	return func(ctx context.Context, _ []string) (string, error) {
		var pointer model.MissingField
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.TurnState) error {
			pointer = state.Pointer
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("failed to access state: %w", err)
		}
		if pointer.IsNone() {
			logx.Debug().Msg("All slots filled - routing to intent classifier")
			return NodeIntentPrompt, nil
		}
		logx.Debug().Str("pointer", pointer.String()).Msg("Slot missing - routing to collect prompt")
		return NodeCollectPrompt, nil
	}
}

func NewCollectPromptNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, contexts []string) ([]*schema.Message, error) {
		var in prompts.CollectInput
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.TurnState) error {
			in = prompts.CollectInput{
				Status:   state.Status,
				Pointer:  state.Pointer,
				Context:  contexts,
				Question: state.Query,
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}
		return prompts.RenderCollect(ctx, in)
	})
}

// NewCollectParserNode yields a nil reply when the generator output is unusable.
func NewCollectParserNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, resp *schema.Message) (*model.ComposedReply, error) {
		if resp == nil {
			return nil, nil
		}
		reply, err := parsers.ParseCollectReply(resp.Content)
		if err != nil {
			logx.Warn().Err(err).Msg("Error parsing collect reply; nothing will be sent")
			return nil, nil
		}
		return reply, nil
	})
}

func NewIntentPromptNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ []string) ([]*schema.Message, error) {
		var query string
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.TurnState) error {
			query = state.Query
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}
		return prompts.RenderIntent(ctx, query)
	})
}

// NewOrderSummarizerNode classifies the intent and renders the fixed reply for it.
func NewOrderSummarizerNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, resp *schema.Message) (*model.ComposedReply, error) {
		var content string
		if resp != nil {
			content = resp.Content
		}
		intent := parsers.ParseIntent(content)

		var status model.ConversationStatus
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.TurnState) error {
			status = state.Status
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		reply := slots.ComposeComplete(intent, status)
		logx.Debug().
			Str("intent", string(reply.Intent)).
			Int64("total_price", reply.OrderSummary.TotalPrice).
			Msg("order summarized")
		return reply, nil
	})
}
