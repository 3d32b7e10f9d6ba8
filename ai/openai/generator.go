package openai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/lectern/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
type Generator struct {
	client llms.Model
	model  string
	logger *slog.Logger
}

var _ ai.Generator = (*Generator)(nil)

func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.GenerationHost),
		openai.WithToken(config.Token()),
		openai.WithModel(config.GenerationModel),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client: client,
		model:  config.GenerationModel,
		logger: slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewGenerator creates a chat completion generator using the provided configuration.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// Generate runs one chat completion.
func (g *Generator) Generate(ctx context.Context, req ai.GenerateRequest) (*ai.Generation, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ai.ErrEmptyPrompt
	}

	model := req.Model
	if model == "" {
		model = g.model
	}
	g.logger.Debug("generating completion", "model", model, "prompt_length", len(req.Prompt))

	response, err := g.client.GenerateContent(ctx, buildMessages(req), callOptions(req, model)...)
	if err != nil {
		g.logger.Error("completion failed", "model", model, "error", err)
		return nil, err
	}
	if len(response.Choices) == 0 {
		return nil, ai.ErrEmptyResponse
	}

	choice := response.Choices[0]
	return &ai.Generation{
		Text:  strings.TrimSpace(choice.Content),
		Model: model,
		Usage: usageFromInfo(choice.GenerationInfo),
	}, nil
}

func buildMessages(req ai.GenerateRequest) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, 2)
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	return append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))
}

func callOptions(req ai.GenerateRequest, model string) []llms.CallOption {
	opts := []llms.CallOption{llms.WithModel(model)}
	if req.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(req.Temperature))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	return opts
}

// usageFromInfo reads the token counts langchaingo copies into GenerationInfo.
func usageFromInfo(info map[string]any) ai.Usage {
	return ai.Usage{
		PromptTokens:     intValue(info["PromptTokens"]),
		CompletionTokens: intValue(info["CompletionTokens"]),
		TotalTokens:      intValue(info["TotalTokens"]),
	}
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
