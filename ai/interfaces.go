package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Callers must not assume the service returned one vector per input; they
	// check the count themselves.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// GenerateRequest is one chat completion call.
// Zero Model, Temperature or MaxTokens fall back to the generator's defaults.
type GenerateRequest struct {
	System      string
	Prompt      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Usage reports token accounting for a completion, when the service returns it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Generation is the text produced for a GenerateRequest.
type Generation struct {
	Text  string
	Model string
	Usage Usage
}

// Generator produces text completions.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate runs one completion. Returns ErrEmptyPrompt when req.Prompt is
	// blank and ErrEmptyResponse when the service returns no choices.
	Generate(ctx context.Context, req GenerateRequest) (*Generation, error)
}

// Provider aggregates AI services for convenient initialization and lifecycle management.
type Provider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Generator returns the completion service.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
