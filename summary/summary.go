// Package summary generates prompt-driven summaries of extracted job text.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/lectern/ai"
)

const (
	// DefaultMaxChars is how much of the document is sent to the model.
	DefaultMaxChars = 12000

	systemPrompt = "You are a helpful document summarizer. Be concise and accurate."
	separator    = "\n\n---\n\n"
)

var (
	// ErrGeneratorRequired is returned when no generator is provided.
	ErrGeneratorRequired = errors.New("generator required")

	// ErrNothingToSummarize is returned for a blank prompt or blank text.
	ErrNothingToSummarize = errors.New("nothing to summarize")
)

// Summarizer asks a generator to summarize document text according to a
// caller supplied prompt.
type Summarizer struct {
	generator ai.Generator
	model     string
	maxChars  int
	logger    *slog.Logger
}

// Option configures a Summarizer.
type Option func(*Summarizer) error

// WithModel sets the model used for summaries.
// Default is ai.DefaultSummaryModel.
func WithModel(model string) Option {
	return func(s *Summarizer) error {
		if model != "" {
			s.model = model
		}
		return nil
	}
}

// WithMaxChars bounds how many characters of the text are sent.
func WithMaxChars(n int) Option {
	return func(s *Summarizer) error {
		if n <= 0 {
			return fmt.Errorf("max chars must be positive, got %d", n)
		}
		s.maxChars = n
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Summarizer) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// New creates a Summarizer.
func New(generator ai.Generator, opts ...Option) (*Summarizer, error) {
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	s := &Summarizer{
		generator: generator,
		model:     ai.DefaultSummaryModel,
		maxChars:  DefaultMaxChars,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "summarizer")
	return s, nil
}

// Summarize returns the model's summary of text following prompt.
// Only the first maxChars characters of text are sent.
func (s *Summarizer) Summarize(ctx context.Context, text, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" || strings.TrimSpace(text) == "" {
		return "", ErrNothingToSummarize
	}

	gen, err := s.generator.Generate(ctx, ai.GenerateRequest{
		System: systemPrompt,
		Prompt: prompt + separator + truncate(text, s.maxChars),
		Model:  s.model,
	})
	if err != nil {
		return "", fmt.Errorf("generating summary: %w", err)
	}
	summary := strings.TrimSpace(gen.Text)
	if summary == "" {
		return "", ai.ErrEmptyResponse
	}
	s.logger.Debug("summary generated", "model", gen.Model, "tokens", gen.Usage.TotalTokens)
	return summary, nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
