package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/chative-sales/server/internal/agent/model"
	logx "github.com/chative-sales/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	Extraction *model.ExtractionModelConfig
	Classifier *model.ClassifierModelConfig
	Response   *model.ResponseModelConfig
	// Timeout bounds each Generate call; zero disables it.
	Timeout time.Duration
}

// ChatModels holds the three models a turn may call.
type ChatModels struct {
	Extraction einomodel.BaseChatModel
	Classifier einomodel.BaseChatModel
	Response   einomodel.BaseChatModel

	ExtractionModelName string
	ClassifierModelName string
	ResponseModelName   string
}

// NewGenAIClient creates the Gemini client shared by chat models and embeddings.
func NewGenAIClient(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientCfg.HTTPOptions.BaseURL = baseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	return client, nil
}

// NewChatModels creates the extraction, classifier and response models on one client.
func NewChatModels(ctx context.Context, client *genai.Client, config ChatModelConfig) (*ChatModels, error) {
	if client == nil {
		return nil, fmt.Errorf("genai client is nil")
	}
	if config.Extraction == nil || config.Classifier == nil || config.Response == nil {
		return nil, fmt.Errorf("chat model config is incomplete")
	}

	extraction, err := newGeminiModel(ctx, client, config.Extraction.Model, config.Extraction.Temperature, config.Extraction.MaxTokens)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating extraction model")
		return nil, fmt.Errorf("error creating extraction model: %w", err)
	}

	classifier, err := newGeminiModel(ctx, client, config.Classifier.Model, config.Classifier.Temperature, config.Classifier.MaxTokens)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating classifier model")
		return nil, fmt.Errorf("error creating classifier model: %w", err)
	}

	response, err := newGeminiModel(ctx, client, config.Response.Model, config.Response.Temperature, config.Response.MaxTokens)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating response model")
		return nil, fmt.Errorf("error creating response model: %w", err)
	}

	return &ChatModels{
		Extraction:          WithTimeout(extraction, config.Timeout),
		Classifier:          WithTimeout(classifier, config.Timeout),
		Response:            WithTimeout(response, config.Timeout),
		ExtractionModelName: config.Extraction.Model,
		ClassifierModelName: config.Classifier.Model,
		ResponseModelName:   config.Response.Model,
	}, nil
}

// newGeminiModel builds a Gemini model with thinking disabled.
func newGeminiModel(ctx context.Context, client *genai.Client, name string, temperature float32, maxTokens int) (*gemini.ChatModel, error) {
	return gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       name,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(0)),
		},
	})
}

// timeoutChatModel bounds Generate with a deadline. Stream is passed through
// unbounded; the turn graph only invokes.
type timeoutChatModel struct {
	inner   einomodel.BaseChatModel
	timeout time.Duration
}

// WithTimeout wraps m so each Generate call is bounded by timeout.
func WithTimeout(m einomodel.BaseChatModel, timeout time.Duration) einomodel.BaseChatModel {
	if timeout <= 0 {
		return m
	}
	return &timeoutChatModel{inner: m, timeout: timeout}
}

func (m *timeoutChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.inner.Generate(ctx, input, opts...)
}

func (m *timeoutChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return m.inner.Stream(ctx, input, opts...)
}

// IsCallbacksEnabled forwards the inner model's flag so callbacks fire once.
func (m *timeoutChatModel) IsCallbacksEnabled() bool {
	if c, ok := m.inner.(components.Checker); ok {
		return c.IsCallbacksEnabled()
	}
	return false
}

func (m *timeoutChatModel) GetType() string {
	if t, ok := components.GetType(m.inner); ok {
		return t
	}
	return "TimeoutChatModel"
}
