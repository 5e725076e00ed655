package repo

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/chative-sales/server/internal/agent/model"
	"github.com/chative-sales/server/pkg/sqlite"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := sqlite.Config{
		Path:         filepath.Join(t.TempDir(), "chative.db"),
		BusyTimeout:  5000,
		MaxOpenConns: 1,
	}
	db, err := cfg.New()
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestKnowledgeRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	r := NewSQLKnowledgeRepository(newTestDB(t))

	_, ok, err := r.FindByContent(ctx, "giá sản phẩm là 175k")
	require.NoError(t, err)
	assert.False(t, ok)

	item := model.KnowledgeItem{Content: "giá sản phẩm là 175k", Embedding: []float32{0.25, -1, 3}}
	require.NoError(t, r.Create(ctx, &item))
	assert.NotZero(t, item.ID)

	got, ok, err := r.FindByContent(ctx, "giá sản phẩm là 175k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, item.ID, got.ID)
	assert.Equal(t, []float32{0.25, -1, 3}, got.Embedding)
}

func TestKnowledgeRepository_CreateDuplicateReturnsExisting(t *testing.T) {
	ctx := context.Background()
	r := NewSQLKnowledgeRepository(newTestDB(t))

	first := model.KnowledgeItem{Content: "có 4 cỡ", Embedding: []float32{1}}
	require.NoError(t, r.Create(ctx, &first))

	dup := model.KnowledgeItem{Content: "có 4 cỡ", Embedding: []float32{2}}
	require.NoError(t, r.Create(ctx, &dup))
	assert.Equal(t, first.ID, dup.ID)
	assert.Equal(t, []float32{1}, dup.Embedding)

	all, err := r.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestKnowledgeRepository_AllKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	r := NewSQLKnowledgeRepository(newTestDB(t))

	for _, c := range []string{"a", "b", "c"} {
		it := model.KnowledgeItem{Content: c, Embedding: []float32{0}}
		require.NoError(t, r.Create(ctx, &it))
	}

	all, err := r.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].Content)
	assert.Equal(t, "c", all[2].Content)
}

func TestConversationRepository_LinkIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	kr := NewSQLKnowledgeRepository(db)
	cr := NewSQLConversationRepository(db)

	q := model.KnowledgeItem{Content: "chị ơi giá bao nhiêu", Embedding: []float32{1}}
	a := model.KnowledgeItem{Content: "Dạ giá 175k ạ", Embedding: []float32{2}}
	require.NoError(t, kr.Create(ctx, &q))
	require.NoError(t, kr.Create(ctx, &a))

	created, err := cr.Link(ctx, "c1", q.ID, model.SourceUser)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = cr.Link(ctx, "c1", a.ID, model.SourceBot)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = cr.Link(ctx, "c1", q.ID, model.SourceUser)
	require.NoError(t, err)
	assert.False(t, created)

	n, err := cr.GetMessageCount(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	tr, err := cr.Transcript(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, tr, 2)
	assert.Equal(t, "chị ơi giá bao nhiêu", tr[0].Content)
	assert.Equal(t, model.SourceUser, tr[0].Source)
	assert.Equal(t, "Dạ giá 175k ạ", tr[1].Content)
	assert.Equal(t, model.SourceBot, tr[1].Source)
	assert.Less(t, tr[0].Sequence, tr[1].Sequence)
}

func TestConversationRepository_SharedKnowledgeAcrossConversations(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	kr := NewSQLKnowledgeRepository(db)
	cr := NewSQLConversationRepository(db)

	it := model.KnowledgeItem{Content: "xin chào", Embedding: []float32{1}}
	require.NoError(t, kr.Create(ctx, &it))

	_, err := cr.Link(ctx, "c1", it.ID, model.SourceUser)
	require.NoError(t, err)
	_, err = cr.Link(ctx, "c2", it.ID, model.SourceUser)
	require.NoError(t, err)

	tr, err := cr.Transcript(ctx, "c2")
	require.NoError(t, err)
	assert.Len(t, tr, 1)

	empty, err := cr.Transcript(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
