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

// Package config loads lectern's settings.
//
// Values come from defaults, then an optional TOML file, then LECTERN_*
// environment variables, each layer overriding the last. The result is
// validated with struct tags plus cross-field checks before use.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/poiesic/lectern/admission"
	"github.com/poiesic/lectern/ai"
	"github.com/poiesic/lectern/jobs"
	"github.com/poiesic/lectern/progress"
	"github.com/poiesic/lectern/queue"
	"github.com/poiesic/lectern/reingest"
	"github.com/poiesic/lectern/retrieval"
	"github.com/poiesic/lectern/segment"
	"github.com/poiesic/lectern/summary"
	"github.com/poiesic/lectern/worker"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete application configuration.
type Config struct {
	Storage   StorageConfig   `toml:"storage"`
	Cache     CacheConfig     `toml:"cache"`
	Queue     QueueConfig     `toml:"queue"`
	Blob      BlobConfig      `toml:"blob"`
	AWS       AWSConfig       `toml:"aws"`
	AI        AIConfig        `toml:"ai"`
	Segment   SegmentConfig   `toml:"segment"`
	Worker    WorkerConfig    `toml:"worker"`
	Admission AdmissionConfig `toml:"admission"`
	Submit    SubmitConfig    `toml:"submit"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Logging   LoggingConfig   `toml:"logging"`
}

// StorageConfig selects the durable record store.
type StorageConfig struct {
	Backend  string `toml:"backend" validate:"oneof=badger postgres"`
	Path     string `toml:"path"` // badger directory; shared with the local cache and queue
	DSN      string `toml:"dsn"`
	MaxConns int32  `toml:"max_conns" validate:"gte=0"`
}

// CacheConfig selects the progress cache.
type CacheConfig struct {
	Backend    string   `toml:"backend" validate:"oneof=badger redis"`
	Addr       string   `toml:"addr" validate:"omitempty,hostname_port"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db" validate:"gte=0,lte=15"`
	TTL        Duration `toml:"ttl"`
	StaleAfter Duration `toml:"stale_after"`
}

// QueueConfig selects the job queue.
type QueueConfig struct {
	Backend           string   `toml:"backend" validate:"oneof=badger sqs"`
	Name              string   `toml:"name" validate:"required,excludes=:"`
	URL               string   `toml:"url" validate:"omitempty,url"`
	Endpoint          string   `toml:"endpoint" validate:"omitempty,url"`
	Wait              Duration `toml:"wait"`
	VisibilityTimeout Duration `toml:"visibility_timeout"`
	MaxReceive        int      `toml:"max_receive" validate:"gte=1"`
}

// BlobConfig selects the document store.
type BlobConfig struct {
	Backend  string `toml:"backend" validate:"oneof=fs s3"`
	Root     string `toml:"root"`
	Bucket   string `toml:"bucket" validate:"required"`
	Endpoint string `toml:"endpoint" validate:"omitempty,url"`
}

// AWSConfig is shared by the S3 and SQS backends.
type AWSConfig struct {
	Region          string `toml:"region"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
}

// AIConfig configures the embedding and generation services.
type AIConfig struct {
	Provider        string `toml:"provider" validate:"oneof=openai anthropic"`
	EmbeddingHost   string `toml:"embedding_host" validate:"required,url"`
	GenerationHost  string `toml:"generation_host" validate:"required,url"`
	EmbeddingModel  string `toml:"embedding_model" validate:"required"`
	Dimensions      int    `toml:"dimensions" validate:"gt=0"`
	BatchSize       int    `toml:"batch_size" validate:"gt=0,lte=2048"`
	GenerationModel string `toml:"generation_model" validate:"required"`
	SummaryModel    string `toml:"summary_model" validate:"required"`
	APIKey          string `toml:"api_key"`
	AnthropicAPIKey string `toml:"anthropic_api_key"`
	AnthropicHost   string `toml:"anthropic_host" validate:"omitempty,url"`
	AnthropicModel  string `toml:"anthropic_model"`
}

// SegmentConfig holds the chunking thresholds.
type SegmentConfig struct {
	MaxSectionWords int     `toml:"max_section_words" validate:"gt=0"`
	ChunkTokens     int     `toml:"chunk_tokens" validate:"gt=0"`
	OverlapTokens   int     `toml:"overlap_tokens" validate:"gte=0,ltfield=ChunkTokens"`
	TokensPerWord   float64 `toml:"tokens_per_word" validate:"gte=0"`
}

// WorkerConfig controls the coordinator loop and the re-ingestion sweep.
type WorkerConfig struct {
	MaxFailures      int      `toml:"max_failures" validate:"gt=0"`
	BackoffBase      Duration `toml:"backoff_base"`
	BackoffMax       Duration `toml:"backoff_max"`
	SummaryMaxChars  int      `toml:"summary_max_chars" validate:"gt=0"`
	ReingestSchedule string   `toml:"reingest_schedule"` // empty disables the sweep
	ReingestPoolSize int      `toml:"reingest_pool_size" validate:"gte=1"`
}

// AdmissionConfig controls backpressure.
type AdmissionConfig struct {
	Ceiling  int      `toml:"ceiling" validate:"gt=0"`
	DepthTTL Duration `toml:"depth_ttl"`
}

// SubmitConfig bounds uploads.
type SubmitConfig struct {
	MaxBytes   int64    `toml:"max_bytes" validate:"gt=0"`
	RateCount  int      `toml:"rate_count" validate:"gt=0"`
	RatePeriod Duration `toml:"rate_period"`
	KnownOwner bool     `toml:"known_owners"` // reject owners without a user record
}

// RetrievalConfig shapes retrieval and answers.
type RetrievalConfig struct {
	TopK         int `toml:"top_k" validate:"gt=0,lte=50"`
	ContextChars int `toml:"context_chars" validate:"gte=0"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=text json"`
}

// Default returns a configuration that runs entirely on local badger
// storage against the hosted OpenAI API.
func Default() *Config {
	seg := segment.DefaultConfig()
	return &Config{
		Storage: StorageConfig{Backend: "badger", Path: "./data"},
		Cache:   CacheConfig{Backend: "badger", TTL: D(progress.DefaultTTL), StaleAfter: D(progress.DefaultStaleAfter)},
		Queue: QueueConfig{
			Backend:           "badger",
			Name:              "jobs",
			Wait:              D(queue.DefaultWait),
			VisibilityTimeout: D(queue.DefaultVisibilityTimeout),
			MaxReceive:        queue.DefaultMaxReceive,
		},
		Blob: BlobConfig{Backend: "fs", Root: "./data/blobs", Bucket: jobs.DefaultBucket},
		AI: AIConfig{
			Provider:        "openai",
			EmbeddingHost:   ai.DefaultHost,
			GenerationHost:  ai.DefaultHost,
			EmbeddingModel:  ai.DefaultEmbeddingModel,
			Dimensions:      ai.DefaultDimensions,
			BatchSize:       ai.DefaultBatchSize,
			GenerationModel: ai.DefaultGenerationModel,
			SummaryModel:    ai.DefaultSummaryModel,
			AnthropicModel:  ai.DefaultAnthropicModel,
		},
		Segment: SegmentConfig{
			MaxSectionWords: seg.MaxSectionWords,
			ChunkTokens:     seg.ChunkTokens,
			OverlapTokens:   seg.OverlapTokens,
			TokensPerWord:   seg.TokensPerWord,
		},
		Worker: WorkerConfig{
			MaxFailures:      worker.DefaultMaxFailures,
			BackoffBase:      D(worker.DefaultBackoffBase),
			BackoffMax:       D(worker.DefaultBackoffMax),
			SummaryMaxChars:  summary.DefaultMaxChars,
			ReingestPoolSize: reingest.DefaultConfig().PoolSize,
		},
		Admission: AdmissionConfig{Ceiling: admission.DefaultCeiling, DepthTTL: D(admission.DefaultDepthTTL)},
		Submit: SubmitConfig{
			MaxBytes:   jobs.DefaultMaxBytes,
			RateCount:  jobs.DefaultRateCount,
			RatePeriod: D(jobs.DefaultRatePeriod),
		},
		Retrieval: RetrievalConfig{TopK: retrieval.DefaultTopK},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load builds a Config from defaults, the TOML file at path (skipped when
// path is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags, then the rules that span fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}
	check(c.Storage.Backend != "postgres" || c.Storage.DSN != "", "storage.dsn is required for postgres")
	check(c.Storage.Path != "" || !c.usesBadger(), "storage.path is required for badger backends")
	check(c.Cache.Backend != "redis" || c.Cache.Addr != "", "cache.addr is required for redis")
	check(c.Cache.TTL.Duration >= time.Second, "cache.ttl must be at least 1s")
	check(c.Cache.StaleAfter.Duration >= time.Second, "cache.stale_after must be at least 1s")
	check(c.Queue.Backend != "sqs" || c.Queue.URL != "", "queue.url is required for sqs")
	check(c.Queue.Wait.Duration >= 0 && c.Queue.Wait.Duration <= queue.DefaultWait, "queue.wait must be between 0 and %s", queue.DefaultWait)
	check(c.Queue.VisibilityTimeout.Duration > 0, "queue.visibility_timeout must be positive")
	check(c.Blob.Backend != "fs" || c.Blob.Root != "", "blob.root is required for fs")
	check(c.AI.Provider != "anthropic" || c.AI.AnthropicAPIKey != "", "ai.anthropic_api_key is required for the anthropic provider")
	check(c.Worker.BackoffBase.Duration > 0, "worker.backoff_base must be positive")
	check(c.Worker.BackoffMax.Duration >= c.Worker.BackoffBase.Duration, "worker.backoff_max must not be below worker.backoff_base")
	check(c.Admission.DepthTTL.Duration > 0, "admission.depth_ttl must be positive")
	check(c.Submit.RatePeriod.Duration > 0, "submit.rate_period must be positive")
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) usesBadger() bool {
	return c.Storage.Backend == "badger" || c.Cache.Backend == "badger" || c.Queue.Backend == "badger"
}

// UsesBadger reports whether any component keeps its data in the local
// badger database at Storage.Path.
func (c *Config) UsesBadger() bool {
	return c.usesBadger()
}

// AIConfig converts the [ai] section into the ai package's configuration.
func (c *Config) AIConfig() *ai.Config {
	cfg := ai.NewConfig(
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithGenerationHost(c.AI.GenerationHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel, c.AI.Dimensions),
		ai.WithBatchSize(c.AI.BatchSize),
		ai.WithGenerationModel(c.AI.GenerationModel),
		ai.WithSummaryModel(c.AI.SummaryModel),
		ai.WithAPIKey(c.AI.APIKey),
		ai.WithAnthropic(c.AI.AnthropicAPIKey, c.AI.AnthropicHost),
	)
	if c.AI.Provider == "anthropic" {
		cfg.GenerationModel = c.AI.AnthropicModel
		cfg.SummaryModel = c.AI.AnthropicModel
	}
	return cfg
}

// SegmentConfig converts the [segment] section.
func (c *Config) SegmentConfig() segment.Config {
	return segment.Config{
		MaxSectionWords: c.Segment.MaxSectionWords,
		ChunkTokens:     c.Segment.ChunkTokens,
		OverlapTokens:   c.Segment.OverlapTokens,
		TokensPerWord:   c.Segment.TokensPerWord,
	}
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	return ParseLevel(c.Logging.Level)
}

// ParseLevel maps a level name to slog, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
