// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"fmt"
	"strings"
)

const (
	DefaultHost            = "https://api.openai.com/v1"
	DefaultEmbeddingModel  = "text-embedding-3-small"
	DefaultDimensions      = 1536
	DefaultBatchSize       = 100
	DefaultGenerationModel = "gpt-4o"
	DefaultSummaryModel    = "gpt-4o-mini"
	DefaultAnthropicModel  = "claude-sonnet-4-5"

	maxBatchSize = 2048
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// GenerationHost is the base URL for the OpenAI-compatible chat API.
	GenerationHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	EmbeddingModel string

	// Dimensions is the length of every embedding vector in the system.
	// Stored chunks and query vectors must all match it.
	Dimensions int

	// BatchSize is the number of texts sent per embedding request.
	BatchSize int

	// GenerationModel answers questions.
	GenerationModel string

	// SummaryModel writes document summaries.
	SummaryModel string

	// APIKey authenticates against OpenAI-compatible hosts. Local servers
	// usually accept any value.
	APIKey string

	// AnthropicAPIKey and AnthropicHost configure the Anthropic generator.
	// AnthropicHost may be empty to use the SDK default.
	AnthropicAPIKey string
	AnthropicHost   string
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithGenerationHost sets the chat service host URL.
func WithGenerationHost(host string) ConfigOption {
	return func(c *Config) {
		c.GenerationHost = host
	}
}

// WithHost sets both embedding and generation hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.GenerationHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier and its vector length.
func WithEmbeddingModel(model string, dimensions int) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
		c.Dimensions = dimensions
	}
}

// WithBatchSize sets the number of texts per embedding request.
func WithBatchSize(size int) ConfigOption {
	return func(c *Config) {
		c.BatchSize = size
	}
}

// WithGenerationModel sets the model used for answers.
func WithGenerationModel(model string) ConfigOption {
	return func(c *Config) {
		c.GenerationModel = model
	}
}

// WithSummaryModel sets the model used for summaries.
func WithSummaryModel(model string) ConfigOption {
	return func(c *Config) {
		c.SummaryModel = model
	}
}

// WithAPIKey sets the key for OpenAI-compatible hosts.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithAnthropic sets the Anthropic key and, optionally, its base URL.
func WithAnthropic(key, host string) ConfigOption {
	return func(c *Config) {
		c.AnthropicAPIKey = key
		c.AnthropicHost = host
	}
}

// DefaultConfig returns a Config targeting the hosted OpenAI API.
// An API key still has to be supplied.
func DefaultConfig() *Config {
	return &Config{
		EmbeddingHost:   DefaultHost,
		GenerationHost:  DefaultHost,
		EmbeddingModel:  DefaultEmbeddingModel,
		Dimensions:      DefaultDimensions,
		BatchSize:       DefaultBatchSize,
		GenerationModel: DefaultGenerationModel,
		SummaryModel:    DefaultSummaryModel,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("nomic-embed-text", 768),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to hosts if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.EmbeddingHost = withV1(c.EmbeddingHost)
	c.GenerationHost = withV1(c.GenerationHost)
}

func withV1(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	switch {
	case c.EmbeddingHost == "":
		return fmt.Errorf("%w: EmbeddingHost is required", ErrInvalidConfig)
	case c.GenerationHost == "":
		return fmt.Errorf("%w: GenerationHost is required", ErrInvalidConfig)
	case c.EmbeddingModel == "":
		return fmt.Errorf("%w: EmbeddingModel is required", ErrInvalidConfig)
	case c.GenerationModel == "":
		return fmt.Errorf("%w: GenerationModel is required", ErrInvalidConfig)
	case c.SummaryModel == "":
		return fmt.Errorf("%w: SummaryModel is required", ErrInvalidConfig)
	case c.Dimensions <= 0:
		return fmt.Errorf("%w: Dimensions must be positive", ErrInvalidConfig)
	case c.BatchSize < 1 || c.BatchSize > maxBatchSize:
		return fmt.Errorf("%w: BatchSize must be between 1 and %d", ErrInvalidConfig, maxBatchSize)
	}

	if c.APIKey == "" && (isHosted(c.EmbeddingHost) || isHosted(c.GenerationHost)) {
		return fmt.Errorf("%w: APIKey is required for %s", ErrMissingCredentials, DefaultHost)
	}
	return nil
}

// Token returns the bearer token for OpenAI-compatible hosts. Local servers
// that skip authentication still expect a non-empty value.
func (c *Config) Token() string {
	if c.APIKey == "" {
		return "none"
	}
	return c.APIKey
}

func isHosted(host string) bool {
	return strings.Contains(host, "api.openai.com")
}
