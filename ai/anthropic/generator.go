// Package anthropic implements ai.Generator on the Anthropic Messages API.
// Anthropic has no embedding endpoint, so Provider pairs the generator with
// an embedder supplied by the caller.
package anthropic

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/poiesic/lectern/ai"
)

// defaultMaxTokens applies when a request leaves MaxTokens unset; the
// Messages API requires a value.
const defaultMaxTokens = 1024

// Generator implements ai.Generator using Claude models.
type Generator struct {
	client sdk.Client
	model  string
	logger *slog.Logger
}

var _ ai.Generator = (*Generator)(nil)

func newGenerator(config *ai.Config, model string) (*Generator, error) {
	if config.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("%w: AnthropicAPIKey is required", ai.ErrMissingCredentials)
	}
	if model == "" {
		model = ai.DefaultAnthropicModel
	}

	opts := []option.RequestOption{option.WithAPIKey(config.AnthropicAPIKey)}
	if config.AnthropicHost != "" {
		opts = append(opts, option.WithBaseURL(config.AnthropicHost))
	}

	return &Generator{
		client: sdk.NewClient(opts...),
		model:  model,
		logger: slog.Default().With("component", "anthropic-generator"),
	}, nil
}

// NewGenerator creates a generator whose default model is config.GenerationModel.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config, config.GenerationModel)
}

// Generate sends one Messages API request.
func (g *Generator) Generate(ctx context.Context, req ai.GenerateRequest) (*ai.Generation, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ai.ErrEmptyPrompt
	}

	params := buildParams(req, g.model)
	g.logger.Debug("generating completion", "model", params.Model, "prompt_length", len(req.Prompt))

	msg, err := g.client.Messages.New(ctx, params)
	if err != nil {
		g.logger.Error("completion failed", "model", params.Model, "error", err)
		return nil, err
	}

	text := responseText(msg.Content)
	if text == "" {
		return nil, ai.ErrEmptyResponse
	}
	return &ai.Generation{
		Text:  text,
		Model: string(params.Model),
		Usage: ai.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}, nil
}

func buildParams(req ai.GenerateRequest, defaultModel string) sdk.MessageNewParams {
	model := req.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}
	return params
}

func responseText(blocks []sdk.ContentBlockUnion) string {
	var sb strings.Builder
	for _, block := range blocks {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}
