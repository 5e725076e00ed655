package knowledge

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/chative-sales/server/internal/agent/model"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the dimensionality of embeddings
	Dimensions() int

	// Name identifies the engine and model, e.g. genai:gemini-embedding-001
	Name() string
}

// GenAIEmbedder generates embeddings using the Gemini API.
type GenAIEmbedder struct {
	client   *genai.Client
	model    string
	taskType string
	dims     int
	timeout  time.Duration
}

// NewGenAIEmbedder shares the Gemini client built for the chat models.
func NewGenAIEmbedder(client *genai.Client, cfg model.EmbeddingConfig, timeout time.Duration) (*GenAIEmbedder, error) {
	if client == nil {
		return nil, fmt.Errorf("genai client is nil")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive, got %d", cfg.Dimensions)
	}
	m := cfg.Model
	if m == "" {
		m = "gemini-embedding-001"
	}
	return &GenAIEmbedder{
		client:   client,
		model:    m,
		taskType: cfg.TaskType,
		dims:     cfg.Dimensions,
		timeout:  timeout,
	}, nil
}

func (e *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	result, err := e.client.Models.EmbedContent(ctx,
		e.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.EmbedContentConfig{
			TaskType:             e.taskType,
			OutputDimensionality: genai.Ptr(int32(e.dims)),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("genai embed failed: %w", err)
	}
	if len(result.Embeddings) == 0 || result.Embeddings[0] == nil {
		return nil, fmt.Errorf("genai embed: no embeddings returned")
	}
	return result.Embeddings[0].Values, nil
}

func (e *GenAIEmbedder) Dimensions() int { return e.dims }

func (e *GenAIEmbedder) Name() string { return "genai:" + e.model }
