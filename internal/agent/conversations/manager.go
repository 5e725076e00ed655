package conversations

import (
	"context"
	"fmt"
	"strings"

	"github.com/chative-sales/server/internal/agent/model"
	logx "github.com/chative-sales/server/pkg/logger"
)

// KnowledgeInserter stores a text once and returns its item.
type KnowledgeInserter interface {
	Insert(ctx context.Context, text string) (model.KnowledgeItem, error)
}

type MessagesManager struct {
	knowledge        KnowledgeInserter
	conversationRepo model.ConversationRepository
	maxHistory       int
}

func NewMessagesManager(knowledge KnowledgeInserter, conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		knowledge:        knowledge,
		conversationRepo: conversationRepo,
		maxHistory:       config.MaxHistory,
	}
}

// Transcript returns the linked contents of the conversation ordered by link
// sequence, trimmed to the last maxHistory entries when a cap is configured.
func (cm *MessagesManager) Transcript(ctx context.Context, conversationID string) ([]string, error) {
	utterances, err := cm.conversationRepo.Transcript(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	utterances = trimTail(utterances, cm.maxHistory)

	out := make([]string, 0, len(utterances))
	for _, u := range utterances {
		out = append(out, u.Content)
	}
	return out, nil
}

// History returns the full transcript with sources and sequence numbers.
func (cm *MessagesManager) History(ctx context.Context, conversationID string) ([]model.Utterance, error) {
	return cm.conversationRepo.Transcript(ctx, conversationID)
}

func (cm *MessagesManager) MessageCount(ctx context.Context, conversationID string) (int, error) {
	return cm.conversationRepo.GetMessageCount(ctx, conversationID)
}

// SaveTurn stores and links the user query, then the reply text when there is
// one. Running it again for the same turn adds nothing.
func (cm *MessagesManager) SaveTurn(ctx context.Context, conversationID, query string, reply *model.ComposedReply) error {
	if err := cm.save(ctx, conversationID, query, model.SourceUser); err != nil {
		return err
	}
	if text := reply.Text(); strings.TrimSpace(text) != "" {
		if err := cm.save(ctx, conversationID, text, model.SourceBot); err != nil {
			return err
		}
	}
	return nil
}

func (cm *MessagesManager) save(ctx context.Context, conversationID, text string, source model.Source) error {
	item, err := cm.knowledge.Insert(ctx, text)
	if err != nil {
		return fmt.Errorf("store %s utterance: %w", source, err)
	}
	created, err := cm.conversationRepo.Link(ctx, conversationID, item.ID, source)
	if err != nil {
		return fmt.Errorf("link %s utterance: %w", source, err)
	}
	logx.Debug().
		Str("conversation_id", conversationID).
		Uint("knowledge_id", item.ID).
		Str("source", string(source)).
		Bool("linked", created).
		Msg("utterance saved")
	return nil
}

func trimTail(utterances []model.Utterance, maxTurns int) []model.Utterance {
	if maxTurns <= 0 || len(utterances) <= maxTurns {
		return utterances
	}
	return utterances[len(utterances)-maxTurns:]
}
