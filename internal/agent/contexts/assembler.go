package contexts

import (
	"context"
	"fmt"

	"github.com/chative-sales/server/internal/agent/model"
	"github.com/chative-sales/server/internal/knowledge"
	logx "github.com/chative-sales/server/pkg/logger"
)

// Searcher is the retrieval side of the knowledge store.
type Searcher interface {
	Search(ctx context.Context, query string, extraTexts []string, k int) ([]knowledge.Match, error)
}

type Assembler struct {
	catalog  *Catalog
	searcher Searcher
	topK     int
}

func NewAssembler(catalog *Catalog, searcher Searcher, topK int) (*Assembler, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog is nil")
	}
	if searcher == nil {
		return nil, fmt.Errorf("searcher is nil")
	}
	return &Assembler{catalog: catalog, searcher: searcher, topK: topK}, nil
}

// Assemble returns policy lines, then the hints for pointer.Field, then the
// retrieved texts in distance order. Layers are concatenated as is, so the
// same text may appear twice. A retrieval error is returned unchanged.
func (a *Assembler) Assemble(ctx context.Context, query string, transcript []string, pointer model.MissingField) ([]string, error) {
	hints := a.catalog.Hints[pointer.Field]
	out := make([]string, 0, len(a.catalog.Policy)+len(hints)+a.topK)
	out = append(out, a.catalog.Policy...)
	out = append(out, hints...)

	matches, err := a.searcher.Search(ctx, query, transcript, a.topK)
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		out = append(out, m.Text)
	}

	logx.Debug().
		Str("pointer", pointer.String()).
		Int("hints", len(hints)).
		Int("retrieved", len(matches)).
		Msg("context assembled")
	return out, nil
}
