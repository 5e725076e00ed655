// Package knowledge holds the deduplicated snippet store and its brute-force
// L2 nearest-neighbour index.
package knowledge

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/viant/sqlite-vec/vector"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/chative-sales/server/internal/agent/model"
	errx "github.com/chative-sales/server/internal/core/error"
	logx "github.com/chative-sales/server/pkg/logger"
)

// maxParallelEmbeds bounds concurrent embedding calls for ephemeral texts.
const maxParallelEmbeds = 4

// Match is one search result.
type Match struct {
	Text     string
	Distance float64
}

// Store owns the in-memory index and keeps it in lockstep with the repository.
// Writers hold mu exclusively; embedding calls and repository writes never
// run under mu.
type Store struct {
	repo     model.KnowledgeRepository
	embedder Embedder
	dims     int
	inflight singleflight.Group

	mu        sync.RWMutex
	items     []model.KnowledgeItem
	byContent map[string]int
}

func NewStore(repo model.KnowledgeRepository, embedder Embedder) (*Store, error) {
	if repo == nil {
		return nil, fmt.Errorf("knowledge repository is nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is nil")
	}
	if embedder.Dimensions() <= 0 {
		return nil, fmt.Errorf("embedder %s reports %d dimensions", embedder.Name(), embedder.Dimensions())
	}
	return &Store{
		repo:      repo,
		embedder:  embedder,
		dims:      embedder.Dimensions(),
		byContent: map[string]int{},
	}, nil
}

// Load fills the index from the repository. Items whose embedding does not
// match the configured dimensionality are skipped and logged.
func (s *Store) Load(ctx context.Context) error {
	items, err := s.repo.All(ctx)
	if err != nil {
		return errx.WrapStorage(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	skipped := 0
	for _, it := range items {
		if len(it.Embedding) != s.dims {
			skipped++
			continue
		}
		if _, ok := s.byContent[it.Content]; ok {
			continue
		}
		s.appendLocked(it)
	}
	logx.Info().Int("loaded", len(s.items)).Int("skipped", skipped).Msg("knowledge index loaded")
	return nil
}

// Len returns the number of indexed items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Insert stores text once. Repeated calls with the same text return the
// existing item without embedding it again. Concurrent inserts of the same
// text share one embed and one repository write.
func (s *Store) Insert(ctx context.Context, text string) (model.KnowledgeItem, error) {
	if it, ok := s.lookup(text); ok {
		return it, nil
	}
	v, err, _ := s.inflight.Do(text, func() (any, error) {
		return s.insert(ctx, text)
	})
	if err != nil {
		return model.KnowledgeItem{}, err
	}
	return v.(model.KnowledgeItem), nil
}

func (s *Store) insert(ctx context.Context, text string) (model.KnowledgeItem, error) {
	if it, ok := s.lookup(text); ok {
		return it, nil
	}

	// persisted by an earlier process but not indexed yet
	if it, ok, err := s.repo.FindByContent(ctx, text); err != nil {
		return model.KnowledgeItem{}, errx.WrapStorage(err)
	} else if ok {
		if len(it.Embedding) != s.dims {
			return model.KnowledgeItem{}, errx.WrapRetrieval(fmt.Errorf("stored embedding for item %d has %d dimensions, want %d", it.ID, len(it.Embedding), s.dims))
		}
		return s.index(it), nil
	}

	vec, err := s.embed(ctx, text)
	if err != nil {
		return model.KnowledgeItem{}, err
	}

	// the write runs outside mu so searches keep going while it is in flight
	item := model.KnowledgeItem{Content: text, Embedding: vec}
	if err := s.repo.Create(ctx, &item); err != nil {
		return model.KnowledgeItem{}, errx.WrapStorage(err)
	}
	logx.Debug().Uint("knowledge_id", item.ID).Int("len", len(text)).Msg("knowledge item stored")
	return s.index(item), nil
}

// Search ranks the stored texts plus extraTexts by L2 distance to the query
// and returns the k closest. extraTexts are embedded for this call only and
// never persisted. Every candidate is scored as given, duplicates included;
// a text that is already stored reuses its stored vector and each other
// distinct text is embedded once. Ties keep candidate order: stored items
// first, then extraTexts as given.
func (s *Store) Search(ctx context.Context, query string, extraTexts []string, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}

	qv, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		text string
		vec  []float32
	}

	s.mu.RLock()
	candidates := make([]candidate, 0, len(s.items)+len(extraTexts))
	for _, it := range s.items {
		candidates = append(candidates, candidate{text: it.Content, vec: it.Embedding})
	}
	known := make(map[string][]float32, len(extraTexts))
	var ephemeral []string
	for _, t := range extraTexts {
		if _, ok := known[t]; ok {
			continue
		}
		if i, ok := s.byContent[t]; ok {
			known[t] = s.items[i].Embedding
			continue
		}
		known[t] = nil
		ephemeral = append(ephemeral, t)
	}
	s.mu.RUnlock()

	vecs := make([][]float32, len(ephemeral))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelEmbeds)
	for i, t := range ephemeral {
		g.Go(func() error {
			v, err := s.embed(gctx, t)
			if err != nil {
				return err
			}
			vecs[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, t := range ephemeral {
		known[t] = vecs[i]
	}
	for _, t := range extraTexts {
		candidates = append(candidates, candidate{text: t, vec: known[t]})
	}

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		d, err := vector.L2Distance(qv, c.vec)
		if err != nil {
			return nil, errx.WrapRetrieval(err)
		}
		matches = append(matches, Match{Text: c.text, Distance: d})
	}
	sort.SliceStable(matches, func(a, b int) bool { return matches[a].Distance < matches[b].Distance })

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, errx.WrapRetrieval(err)
	}
	if len(vec) != s.dims {
		return nil, errx.WrapRetrieval(fmt.Errorf("embedding has %d dimensions, want %d", len(vec), s.dims))
	}
	return vec, nil
}

func (s *Store) lookup(text string) (model.KnowledgeItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.byContent[text]; ok {
		return s.items[i], true
	}
	return model.KnowledgeItem{}, false
}

func (s *Store) index(it model.KnowledgeItem) model.KnowledgeItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.byContent[it.Content]; ok {
		return s.items[i]
	}
	s.appendLocked(it)
	return it
}

func (s *Store) appendLocked(it model.KnowledgeItem) {
	s.byContent[it.Content] = len(s.items)
	s.items = append(s.items, it)
}
