package config

import (
	"fmt"
	"strconv"
	"time"
)

// EnvPrefix starts every override variable.
const EnvPrefix = "LECTERN_"

type lookupFunc func(key string) (string, bool)

type envVar struct {
	name  string
	apply func(c *Config, value string) error
}

func str(dst func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*dst(c) = v
		return nil
	}
}

func integer(dst func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst(c) = n
		return nil
	}
}

func duration(dst func(*Config) *Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		dst(c).Duration = d
		return nil
	}
}

var envVars = []envVar{
	{"STORAGE_BACKEND", str(func(c *Config) *string { return &c.Storage.Backend })},
	{"STORAGE_PATH", str(func(c *Config) *string { return &c.Storage.Path })},
	{"DATABASE_URL", str(func(c *Config) *string { return &c.Storage.DSN })},
	{"CACHE_BACKEND", str(func(c *Config) *string { return &c.Cache.Backend })},
	{"REDIS_ADDR", str(func(c *Config) *string { return &c.Cache.Addr })},
	{"REDIS_PASSWORD", str(func(c *Config) *string { return &c.Cache.Password })},
	{"REDIS_DB", integer(func(c *Config) *int { return &c.Cache.DB })},
	{"CACHE_TTL", duration(func(c *Config) *Duration { return &c.Cache.TTL })},
	{"CACHE_STALE_AFTER", duration(func(c *Config) *Duration { return &c.Cache.StaleAfter })},
	{"QUEUE_BACKEND", str(func(c *Config) *string { return &c.Queue.Backend })},
	{"QUEUE_NAME", str(func(c *Config) *string { return &c.Queue.Name })},
	{"QUEUE_URL", str(func(c *Config) *string { return &c.Queue.URL })},
	{"QUEUE_ENDPOINT", str(func(c *Config) *string { return &c.Queue.Endpoint })},
	{"QUEUE_WAIT", duration(func(c *Config) *Duration { return &c.Queue.Wait })},
	{"QUEUE_VISIBILITY_TIMEOUT", duration(func(c *Config) *Duration { return &c.Queue.VisibilityTimeout })},
	{"QUEUE_MAX_RECEIVE", integer(func(c *Config) *int { return &c.Queue.MaxReceive })},
	{"BLOB_BACKEND", str(func(c *Config) *string { return &c.Blob.Backend })},
	{"BLOB_ROOT", str(func(c *Config) *string { return &c.Blob.Root })},
	{"BLOB_BUCKET", str(func(c *Config) *string { return &c.Blob.Bucket })},
	{"BLOB_ENDPOINT", str(func(c *Config) *string { return &c.Blob.Endpoint })},
	{"AWS_REGION", str(func(c *Config) *string { return &c.AWS.Region })},
	{"AWS_ACCESS_KEY_ID", str(func(c *Config) *string { return &c.AWS.AccessKeyID })},
	{"AWS_SECRET_ACCESS_KEY", str(func(c *Config) *string { return &c.AWS.SecretAccessKey })},
	{"AI_PROVIDER", str(func(c *Config) *string { return &c.AI.Provider })},
	{"EMBEDDING_HOST", str(func(c *Config) *string { return &c.AI.EmbeddingHost })},
	{"GENERATION_HOST", str(func(c *Config) *string { return &c.AI.GenerationHost })},
	{"EMBEDDING_MODEL", str(func(c *Config) *string { return &c.AI.EmbeddingModel })},
	{"EMBEDDING_DIMENSIONS", integer(func(c *Config) *int { return &c.AI.Dimensions })},
	{"EMBEDDING_BATCH_SIZE", integer(func(c *Config) *int { return &c.AI.BatchSize })},
	{"GENERATION_MODEL", str(func(c *Config) *string { return &c.AI.GenerationModel })},
	{"SUMMARY_MODEL", str(func(c *Config) *string { return &c.AI.SummaryModel })},
	{"OPENAI_API_KEY", str(func(c *Config) *string { return &c.AI.APIKey })},
	{"ANTHROPIC_API_KEY", str(func(c *Config) *string { return &c.AI.AnthropicAPIKey })},
	{"ANTHROPIC_MODEL", str(func(c *Config) *string { return &c.AI.AnthropicModel })},
	{"WORKER_MAX_FAILURES", integer(func(c *Config) *int { return &c.Worker.MaxFailures })},
	{"WORKER_BACKOFF_BASE", duration(func(c *Config) *Duration { return &c.Worker.BackoffBase })},
	{"WORKER_BACKOFF_MAX", duration(func(c *Config) *Duration { return &c.Worker.BackoffMax })},
	{"REINGEST_SCHEDULE", str(func(c *Config) *string { return &c.Worker.ReingestSchedule })},
	{"QUEUE_CEILING", integer(func(c *Config) *int { return &c.Admission.Ceiling })},
	{"RATE_LIMIT_COUNT", integer(func(c *Config) *int { return &c.Submit.RateCount })},
	{"RATE_LIMIT_PERIOD", duration(func(c *Config) *Duration { return &c.Submit.RatePeriod })},
	{"TOP_K", integer(func(c *Config) *int { return &c.Retrieval.TopK })},
	{"LOG_LEVEL", str(func(c *Config) *string { return &c.Logging.Level })},
	{"LOG_FORMAT", str(func(c *Config) *string { return &c.Logging.Format })},
}

// applyEnvOverrides applies LECTERN_* variables on top of cfg. The usual
// provider key variables are honored when the prefixed ones are unset.
func applyEnvOverrides(cfg *Config, lookup lookupFunc) error {
	if v, ok := lookup("OPENAI_API_KEY"); ok && v != "" {
		cfg.AI.APIKey = v
	}
	if v, ok := lookup("ANTHROPIC_API_KEY"); ok && v != "" {
		cfg.AI.AnthropicAPIKey = v
	}
	for _, ev := range envVars {
		v, ok := lookup(EnvPrefix + ev.name)
		if !ok || v == "" {
			continue
		}
		if err := ev.apply(cfg, v); err != nil {
			return fmt.Errorf("%w: %s%s: %w", ErrInvalidConfig, EnvPrefix, ev.name, err)
		}
	}
	return nil
}
