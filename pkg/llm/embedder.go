package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/AhmedEldessouki1982/cdns/internal/types"
)

// EmbedderConfig configures the embedding provider client.
type EmbedderConfig struct {
	BaseURL string // OpenAI-compatible endpoint; empty means the provider default
	APIKey  string
	Model   string
}

// Embedder converts text to fixed-dimension vectors through an
// OpenAI-compatible embeddings endpoint. The vector dimension is fixed per
// deployment by the model; the index it feeds must be configured to match.
type Embedder struct {
	config EmbedderConfig
	impl   *embeddings.EmbedderImpl
}

func NewEmbedder(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "text-embedding-3-small"
	}

	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(config.APIKey, "Bearer ")),
		openai.WithModel(config.Model),
		openai.WithEmbeddingModel(config.Model),
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embeddings client: %w", err)
	}

	impl, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return &Embedder{config: config, impl: impl}, nil
}

// EmbedText embeds one text. Provider failures surface as *types.ProviderError
// with the underlying error intact; there is no retry at this layer.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &types.ValidationError{Msg: "embed: text must be a non-empty string"}
	}

	vec, err := e.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, &types.ProviderError{Provider: "embeddings", Err: err}
	}
	return vec, nil
}

var _ types.Embedder = (*Embedder)(nil)
