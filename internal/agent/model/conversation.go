package model

import (
	"context"
	"time"
)

// Source tells who produced an utterance.
type Source string

const (
	SourceUser Source = "user"
	SourceBot  Source = "bot"
)

// KnowledgeItem is a deduplicated text snippet with its embedding.
type KnowledgeItem struct {
	ID        uint
	Content   string
	Embedding []float32
	CreatedAt time.Time
}

// Utterance is one replayed transcript entry.
type Utterance struct {
	Content  string
	Source   Source
	Sequence uint
}

// KnowledgeRepository persists knowledge items keyed by unique content.
type KnowledgeRepository interface {
	// FindByContent returns the item with exactly this content, or ok=false.
	FindByContent(ctx context.Context, content string) (item KnowledgeItem, ok bool, err error)

	// Create stores a new item and fills in its ID.
	Create(ctx context.Context, item *KnowledgeItem) error

	// All returns every stored item in insertion order.
	All(ctx context.Context) ([]KnowledgeItem, error)
}

// ConversationRepository links knowledge items to conversations in sequence.
type ConversationRepository interface {
	// Link records (conversationID, knowledgeID) once; repeated calls are no-ops.
	// It reports whether a new link was created.
	Link(ctx context.Context, conversationID string, knowledgeID uint, source Source) (bool, error)

	// Transcript returns the linked contents ordered by link sequence.
	Transcript(ctx context.Context, conversationID string) ([]Utterance, error)

	// GetMessageCount returns the number of linked utterances in the conversation
	GetMessageCount(ctx context.Context, conversationID string) (int, error)
}
