package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/AhmedEldessouki1982/cdns/internal/types"
)

// ChatConfig configures the completion provider client.
type ChatConfig struct {
	BaseURL string // OpenAI-compatible endpoint; empty means the provider default
	APIKey  string
	Model   string
}

// ChatEngine generates completions through an OpenAI-compatible chat
// endpoint.
type ChatEngine struct {
	config ChatConfig
	model  llms.Model
}

func NewChatEngine(config ChatConfig) (*ChatEngine, error) {
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}

	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(config.APIKey, "Bearer ")),
		openai.WithModel(config.Model),
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat client: %w", err)
	}

	return &ChatEngine{config: config, model: model}, nil
}

// Complete sends the messages to the completion provider and returns the
// first choice's text. A successful response that carries no choices yields
// an empty string with a nil error; deciding what an empty completion means
// is the caller's business. Transport and API failures surface as
// *types.ProviderError.
func (ce *ChatEngine) Complete(ctx context.Context, messages []types.Message, temperature float64) (string, error) {
	if len(messages) == 0 {
		return "", &types.ValidationError{Msg: "complete: at least one message is required"}
	}

	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(roleFor(m.Role), m.Content))
	}

	resp, err := ce.model.GenerateContent(ctx, content, llms.WithTemperature(temperature))
	if err != nil {
		return "", &types.ProviderError{Provider: "chat", Err: err}
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", nil
	}
	return resp.Choices[0].Content, nil
}

func roleFor(role string) schema.ChatMessageType {
	switch role {
	case "system":
		return schema.ChatMessageTypeSystem
	case "assistant":
		return schema.ChatMessageTypeAI
	default:
		return schema.ChatMessageTypeHuman
	}
}

var _ types.Completer = (*ChatEngine)(nil)
