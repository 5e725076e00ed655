package repo

import (
	"context"
	"fmt"

	"github.com/viant/sqlite-vec/vector"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chative-sales/server/internal/agent/model"
	errx "github.com/chative-sales/server/internal/core/error"
	logx "github.com/chative-sales/server/pkg/logger"
)

type SQLKnowledgeRepository struct {
	db *gorm.DB
}

func NewSQLKnowledgeRepository(db *gorm.DB) *SQLKnowledgeRepository {
	return &SQLKnowledgeRepository{db: db}
}

func (r *SQLKnowledgeRepository) FindByContent(ctx context.Context, content string) (model.KnowledgeItem, bool, error) {
	var rows []knowledgeRow
	if err := r.db.WithContext(ctx).Where("content = ?", content).Limit(1).Find(&rows).Error; err != nil {
		logx.Error().Err(err).Msg("failed to look up knowledge item")
		return model.KnowledgeItem{}, false, errx.WrapStorage(err)
	}
	if len(rows) == 0 {
		return model.KnowledgeItem{}, false, nil
	}
	it, err := toItem(rows[0])
	if err != nil {
		return model.KnowledgeItem{}, false, errx.WrapStorage(err)
	}
	return it, true, nil
}

// Create inserts item. If another writer stored the same content first, the
// existing row is returned through item instead.
func (r *SQLKnowledgeRepository) Create(ctx context.Context, item *model.KnowledgeItem) error {
	blob, err := vector.EncodeEmbedding(item.Embedding)
	if err != nil {
		return errx.WrapStorage(fmt.Errorf("encode embedding: %w", err))
	}
	row := knowledgeRow{
		Content:   item.Content,
		Embedding: blob,
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		logx.Error().Err(res.Error).Int("len", len(item.Content)).Msg("failed to insert knowledge item")
		return errx.WrapStorage(res.Error)
	}
	if res.RowsAffected == 0 {
		existing, ok, err := r.FindByContent(ctx, item.Content)
		if err != nil {
			return err
		}
		if !ok {
			return errx.WrapStorage(fmt.Errorf("knowledge item vanished after conflicting insert"))
		}
		*item = existing
		return nil
	}
	item.ID = row.ID
	item.CreatedAt = row.CreatedAt
	return nil
}

func (r *SQLKnowledgeRepository) All(ctx context.Context) ([]model.KnowledgeItem, error) {
	var rows []knowledgeRow
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		logx.Error().Err(err).Msg("failed to load knowledge items")
		return nil, errx.WrapStorage(err)
	}

	items := make([]model.KnowledgeItem, 0, len(rows))
	for _, row := range rows {
		it, err := toItem(row)
		if err != nil {
			logx.Warn().Err(err).Uint("knowledge_id", row.ID).Msg("skipping undecodable knowledge item")
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

func toItem(row knowledgeRow) (model.KnowledgeItem, error) {
	vec, err := vector.DecodeEmbedding(row.Embedding)
	if err != nil {
		return model.KnowledgeItem{}, fmt.Errorf("decode embedding of item %d: %w", row.ID, err)
	}
	return model.KnowledgeItem{
		ID:        row.ID,
		Content:   row.Content,
		Embedding: vec,
		CreatedAt: row.CreatedAt,
	}, nil
}

var _ model.KnowledgeRepository = (*SQLKnowledgeRepository)(nil)
