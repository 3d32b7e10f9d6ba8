package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "https://api.openai.com/v1", cfg.EmbeddingHost)
	assert.Equal(t, "https://api.openai.com/v1", cfg.GenerationHost)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, 1536, cfg.Dimensions)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, "gpt-4o", cfg.GenerationModel)
	assert.Equal(t, "gpt-4o-mini", cfg.SummaryModel)
}

func TestNewConfig(t *testing.T) {
	t.Run("with custom host", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://custom:8080/v1"))

		assert.Equal(t, "http://custom:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://custom:8080/v1", cfg.GenerationHost)
	})

	t.Run("with separate hosts", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080/v1"),
			WithGenerationHost("http://chat:9090/v1"),
		)

		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://chat:9090/v1", cfg.GenerationHost)
	})

	t.Run("with custom models", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingModel("nomic-embed-text", 768),
			WithGenerationModel("llama3"),
			WithSummaryModel("qwen2.5:3b"),
			WithBatchSize(16),
		)

		assert.Equal(t, "nomic-embed-text", cfg.EmbeddingModel)
		assert.Equal(t, 768, cfg.Dimensions)
		assert.Equal(t, "llama3", cfg.GenerationModel)
		assert.Equal(t, "qwen2.5:3b", cfg.SummaryModel)
		assert.Equal(t, 16, cfg.BatchSize)
	})

	t.Run("with anthropic", func(t *testing.T) {
		cfg := NewConfig(WithAnthropic("sk-ant", "http://proxy"))

		assert.Equal(t, "sk-ant", cfg.AnthropicAPIKey)
		assert.Equal(t, "http://proxy", cfg.AnthropicHost)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{"adds suffix", "http://localhost:11434", "http://localhost:11434/v1"},
		{"trims slash", "http://localhost:11434/", "http://localhost:11434/v1"},
		{"keeps suffix", "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"empty stays empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{EmbeddingHost: tt.host, GenerationHost: tt.host}
			cfg.Normalize()
			assert.Equal(t, tt.want, cfg.EmbeddingHost)
			assert.Equal(t, tt.want, cfg.GenerationHost)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	local := func(opts ...ConfigOption) *Config {
		return NewConfig(append([]ConfigOption{WithHost("http://localhost:11434")}, opts...)...)
	}

	t.Run("local host needs no key", func(t *testing.T) {
		cfg := local()
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, "none", cfg.Token())
	})

	t.Run("hosted api requires key", func(t *testing.T) {
		cfg := DefaultConfig()
		err := cfg.Validate()
		assert.ErrorIs(t, err, ErrMissingCredentials)

		cfg.APIKey = "sk-test"
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "sk-test", cfg.Token())
	})

	invalid := []struct {
		name string
		cfg  *Config
	}{
		{"missing embedding host", &Config{GenerationHost: "http://x/v1", EmbeddingModel: "m", GenerationModel: "m", SummaryModel: "m", Dimensions: 3, BatchSize: 1}},
		{"missing generation host", &Config{EmbeddingHost: "http://x/v1", EmbeddingModel: "m", GenerationModel: "m", SummaryModel: "m", Dimensions: 3, BatchSize: 1}},
		{"missing embedding model", local(WithEmbeddingModel("", 3))},
		{"missing generation model", local(WithGenerationModel(""))},
		{"missing summary model", local(WithSummaryModel(""))},
		{"zero dimensions", local(WithEmbeddingModel("m", 0))},
		{"zero batch", local(WithBatchSize(0))},
		{"huge batch", local(WithBatchSize(5000))},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.cfg.Validate(), ErrInvalidConfig)
		})
	}
}
