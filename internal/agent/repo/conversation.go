package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chative-sales/server/internal/agent/model"
	errx "github.com/chative-sales/server/internal/core/error"
	logx "github.com/chative-sales/server/pkg/logger"
)

type SQLConversationRepository struct {
	db *gorm.DB
}

func NewSQLConversationRepository(db *gorm.DB) *SQLConversationRepository {
	return &SQLConversationRepository{db: db}
}

func (r *SQLConversationRepository) Link(ctx context.Context, conversationID string, knowledgeID uint, source model.Source) (bool, error) {
	row := linkRow{
		ConversationID: conversationID,
		KnowledgeID:    knowledgeID,
		Source:         string(source),
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		logx.Error().Err(res.Error).
			Str("conversation_id", conversationID).
			Uint("knowledge_id", knowledgeID).
			Msg("failed to link knowledge to conversation")
		return false, errx.WrapStorage(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *SQLConversationRepository) Transcript(ctx context.Context, conversationID string) ([]model.Utterance, error) {
	var rows []struct {
		Content  string
		Source   string
		Sequence uint
	}
	err := r.db.WithContext(ctx).
		Table("conversation_links AS cl").
		Select("k.content AS content, cl.source AS source, cl.id AS sequence").
		Joins("JOIN knowledge AS k ON k.id = cl.knowledge_id").
		Where("cl.conversation_id = ?", conversationID).
		Order("cl.id ASC").
		Scan(&rows).Error
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to load conversation transcript")
		return nil, errx.WrapStorage(err)
	}

	out := make([]model.Utterance, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.Utterance{
			Content:  row.Content,
			Source:   model.Source(row.Source),
			Sequence: row.Sequence,
		})
	}
	return out, nil
}

func (r *SQLConversationRepository) GetMessageCount(ctx context.Context, conversationID string) (int, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&linkRow{}).Where("conversation_id = ?", conversationID).Count(&n).Error; err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to count conversation links")
		return 0, errx.WrapStorage(err)
	}
	return int(n), nil
}

var _ model.ConversationRepository = (*SQLConversationRepository)(nil)
