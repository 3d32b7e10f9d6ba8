package anthropic

import (
	"errors"
	"log/slog"

	"github.com/poiesic/lectern/ai"
)

// ErrEmbedderRequired is returned when NewProvider is called without an embedder.
var ErrEmbedderRequired = errors.New("embedder is required")

// Provider pairs the Claude generator with an external embedder.
type Provider struct {
	embedder  ai.Embedder
	generator *Generator
	logger    *slog.Logger
}

// NewProvider creates a provider that generates with Claude and embeds with embedder.
func NewProvider(config *ai.Config, embedder ai.Embedder) (ai.Provider, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	generator, err := newGenerator(config, config.GenerationModel)
	if err != nil {
		return nil, err
	}
	return &Provider{
		embedder:  embedder,
		generator: generator,
		logger:    slog.Default().With("component", "anthropic-provider"),
	}, nil
}

func (p *Provider) Embedder() ai.Embedder   { return p.embedder }
func (p *Provider) Generator() ai.Generator { return p.generator }

// Close is a no-op; the SDK client holds no resources that need releasing.
func (p *Provider) Close() error {
	p.logger.Debug("closing Anthropic provider")
	return nil
}
