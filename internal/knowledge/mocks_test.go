package knowledge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/chative-sales/server/internal/agent/model"
)

// fakeEmbedder returns fixed 2-d vectors per text; unknown texts map to the origin.
type fakeEmbedder struct {
	vectors map[string][]float32
	dims    int
	calls   atomic.Int64
	err     error
}

func newFakeEmbedder(vectors map[string][]float32) *fakeEmbedder {
	return &fakeEmbedder{vectors: vectors, dims: 2}
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return make([]float32, f.dims), nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dims }
func (f *fakeEmbedder) Name() string    { return "fake:test" }

// memoryRepo is an in-memory model.KnowledgeRepository.
type memoryRepo struct {
	mu      sync.Mutex
	items   []model.KnowledgeItem
	creates int
	err     error
}

func (r *memoryRepo) FindByContent(ctx context.Context, content string) (model.KnowledgeItem, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return model.KnowledgeItem{}, false, r.err
	}
	for _, it := range r.items {
		if it.Content == content {
			return it, true, nil
		}
	}
	return model.KnowledgeItem{}, false, nil
}

func (r *memoryRepo) Create(ctx context.Context, item *model.KnowledgeItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, it := range r.items {
		if it.Content == item.Content {
			return fmt.Errorf("UNIQUE constraint failed: knowledge.content")
		}
	}
	r.creates++
	item.ID = uint(len(r.items) + 1)
	r.items = append(r.items, *item)
	return nil
}

func (r *memoryRepo) All(ctx context.Context) ([]model.KnowledgeItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.KnowledgeItem(nil), r.items...), r.err
}

var _ model.KnowledgeRepository = (*memoryRepo)(nil)

// blockingRepo holds Create until release is closed.
type blockingRepo struct {
	memoryRepo
	started chan struct{}
	release chan struct{}
}

func (r *blockingRepo) Create(ctx context.Context, item *model.KnowledgeItem) error {
	close(r.started)
	<-r.release
	return r.memoryRepo.Create(ctx, item)
}
