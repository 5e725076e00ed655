package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative-sales/server/internal/agent/model"
	errx "github.com/chative-sales/server/internal/core/error"
)

func newTestStore(t *testing.T, vectors map[string][]float32) (*Store, *memoryRepo, *fakeEmbedder) {
	t.Helper()
	repo := &memoryRepo{}
	emb := newFakeEmbedder(vectors)
	s, err := NewStore(repo, emb)
	require.NoError(t, err)
	return s, repo, emb
}

func TestStore_InsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, repo, emb := newTestStore(t, nil)

	first, err := s.Insert(ctx, "giá sản phẩm là 175k")
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.Equal(t, 1, s.Len())

	second, err := s.Insert(ctx, "giá sản phẩm là 175k")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, repo.creates)
	assert.EqualValues(t, 1, emb.calls.Load())
}

func TestStore_InsertReusesPersistedItem(t *testing.T) {
	ctx := context.Background()
	s, repo, emb := newTestStore(t, nil)
	repo.items = []model.KnowledgeItem{{ID: 7, Content: "có 4 cỡ", Embedding: []float32{1, 1}}}

	it, err := s.Insert(ctx, "có 4 cỡ")
	require.NoError(t, err)
	assert.Equal(t, uint(7), it.ID)
	assert.Equal(t, 1, s.Len())
	assert.Zero(t, emb.calls.Load())
	assert.Zero(t, repo.creates)
}

func TestStore_InsertConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	s, repo, _ := newTestStore(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Insert(ctx, fmt.Sprintf("snippet %d", i%4))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, s.Len())
	assert.Equal(t, 4, repo.creates)
}

func TestStore_InsertEmbeddingFailure(t *testing.T) {
	s, repo, emb := newTestStore(t, nil)
	emb.err = errors.New("embedding service unavailable")

	_, err := s.Insert(context.Background(), "x")
	assert.ErrorIs(t, err, errx.ErrRetrieval)
	assert.Zero(t, s.Len())
	assert.Zero(t, repo.creates)
}

func TestStore_InsertStorageFailure(t *testing.T) {
	s, repo, _ := newTestStore(t, nil)
	repo.err = errors.New("database is locked")

	_, err := s.Insert(context.Background(), "x")
	assert.ErrorIs(t, err, errx.ErrStorage)
	assert.Zero(t, s.Len())
}

func TestStore_InsertDimensionMismatch(t *testing.T) {
	s, _, _ := newTestStore(t, map[string][]float32{"bad": {1, 2, 3}})

	_, err := s.Insert(context.Background(), "bad")
	assert.ErrorIs(t, err, errx.ErrRetrieval)
}

func TestStore_SearchMergesAndSorts(t *testing.T) {
	ctx := context.Background()
	s, repo, _ := newTestStore(t, map[string][]float32{
		"query":       {0, 0},
		"far":         {10, 0},
		"near":        {1, 0},
		"transcript1": {0, 2},
		"transcript2": {3, 4},
	})
	_, err := s.Insert(ctx, "far")
	require.NoError(t, err)
	_, err = s.Insert(ctx, "near")
	require.NoError(t, err)

	got, err := s.Search(ctx, "query", []string{"transcript2", "transcript1"}, 5)
	require.NoError(t, err)

	require.Len(t, got, 4)
	assert.Equal(t, []Match{
		{Text: "near", Distance: 1},
		{Text: "transcript1", Distance: 2},
		{Text: "transcript2", Distance: 5},
		{Text: "far", Distance: 10},
	}, got)

	// ephemeral texts are never persisted
	assert.Equal(t, 2, s.Len())
	assert.Len(t, repo.items, 2)
}

func TestStore_SearchTopK(t *testing.T) {
	ctx := context.Background()
	vectors := map[string][]float32{"q": {0, 0}}
	var extra []string
	for i := 1; i <= 8; i++ {
		text := fmt.Sprintf("t%d", i)
		vectors[text] = []float32{float32(i), 0}
		extra = append(extra, text)
	}
	s, _, _ := newTestStore(t, vectors)

	got, err := s.Search(ctx, "q", extra, 5)
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i, m := range got {
		assert.Equal(t, fmt.Sprintf("t%d", i+1), m.Text)
	}

	none, err := s.Search(ctx, "q", extra, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_SearchScoresCandidatesAsGiven(t *testing.T) {
	ctx := context.Background()
	s, _, emb := newTestStore(t, map[string][]float32{"stored": {1, 0}, "q": {0, 0}, "dạ": {0, 2}})
	_, err := s.Insert(ctx, "stored")
	require.NoError(t, err)
	emb.calls.Store(0)

	got, err := s.Search(ctx, "q", []string{"stored", "dạ", "dạ"}, 10)
	require.NoError(t, err)
	assert.Equal(t, []Match{
		{Text: "stored", Distance: 1},
		{Text: "stored", Distance: 1},
		{Text: "dạ", Distance: 2},
		{Text: "dạ", Distance: 2},
	}, got)
	// query + "dạ" once; "stored" reuses its indexed vector
	assert.EqualValues(t, 2, emb.calls.Load())
}

func TestStore_SearchNotBlockedByPendingWrite(t *testing.T) {
	ctx := context.Background()
	repo := &blockingRepo{started: make(chan struct{}), release: make(chan struct{})}
	s, err := NewStore(repo, newFakeEmbedder(map[string][]float32{"q": {0, 0}, "slow": {1, 0}}))
	require.NoError(t, err)

	inserted := make(chan error, 1)
	go func() {
		_, err := s.Insert(ctx, "slow")
		inserted <- err
	}()
	<-repo.started

	searched := make(chan []Match, 1)
	go func() {
		got, _ := s.Search(ctx, "q", []string{"slow"}, 5)
		searched <- got
	}()
	select {
	case got := <-searched:
		assert.Equal(t, []Match{{Text: "slow", Distance: 1}}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("search blocked while repository write was in flight")
	}

	close(repo.release)
	require.NoError(t, <-inserted)
	assert.Equal(t, 1, s.Len())
}

func TestStore_SearchEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	s, _, emb := newTestStore(t, nil)
	_, err := s.Insert(ctx, "stored")
	require.NoError(t, err)

	emb.err = errors.New("timeout")
	got, err := s.Search(ctx, "q", []string{"a"}, 5)
	assert.ErrorIs(t, err, errx.ErrRetrieval)
	assert.Nil(t, got)
}

func TestStore_Load(t *testing.T) {
	repo := &memoryRepo{items: []model.KnowledgeItem{
		{ID: 1, Content: "a", Embedding: []float32{1, 0}},
		{ID: 2, Content: "b", Embedding: []float32{1, 0, 0}},
		{ID: 3, Content: "c", Embedding: []float32{0, 1}},
	}}
	s, err := NewStore(repo, newFakeEmbedder(nil))
	require.NoError(t, err)

	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, 2, s.Len())

	repo.err = errors.New("no such table")
	assert.ErrorIs(t, s.Load(context.Background()), errx.ErrStorage)
}

func TestNewStore_Validation(t *testing.T) {
	_, err := NewStore(nil, newFakeEmbedder(nil))
	assert.Error(t, err)
	_, err = NewStore(&memoryRepo{}, nil)
	assert.Error(t, err)
	emb := newFakeEmbedder(nil)
	emb.dims = 0
	_, err = NewStore(&memoryRepo{}, emb)
	assert.Error(t, err)
}
