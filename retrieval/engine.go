package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/poiesic/lectern/ai"
	"github.com/poiesic/lectern/storage"
)

const (
	// DefaultTopK is used when a query does not set TopK.
	DefaultTopK = 5

	// MaxTopK caps TopK.
	MaxTopK = 50

	// DefaultAnswerTemperature and DefaultAnswerMaxTokens shape Ask completions.
	DefaultAnswerTemperature = 0.7
	DefaultAnswerMaxTokens   = 500
)

// Query scopes a retrieval to an owner and optionally one job.
type Query struct {
	OwnerID string
	Text    string
	JobID   string // empty searches every job of the owner
	TopK    int    // <= 0 means DefaultTopK
}

// Result is one retrieved chunk.
type Result struct {
	JobID      string
	Filename   string
	Index      int
	Text       string
	TokenCount int
	Score      float32 // cosine similarity mapped onto [0, 1] as (1+cos)/2
}

// Engine ranks stored chunks against queries and answers questions from them.
type Engine struct {
	chunks    storage.ChunkRepository
	embedder  ai.Embedder
	generator ai.Generator
	dims      int

	model        string
	temperature  float64
	maxTokens    int
	contextChars int

	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithDimensions sets the expected query embedding dimension.
// Zero disables the check.
func WithDimensions(dims int) Option {
	return func(e *Engine) error {
		if dims < 0 {
			return fmt.Errorf("dimensions cannot be negative, got %d", dims)
		}
		e.dims = dims
		return nil
	}
}

// WithGenerator enables Ask.
func WithGenerator(generator ai.Generator) Option {
	return func(e *Engine) error {
		e.generator = generator
		return nil
	}
}

// WithAnswerModel sets the model and sampling used by Ask.
func WithAnswerModel(model string, temperature float64, maxTokens int) Option {
	return func(e *Engine) error {
		if temperature < 0 || maxTokens < 0 {
			return fmt.Errorf("invalid answer settings: temperature %v, max tokens %d", temperature, maxTokens)
		}
		if model != "" {
			e.model = model
		}
		e.temperature = temperature
		e.maxTokens = maxTokens
		return nil
	}
}

// WithContextChars bounds the context handed to the generator.
// Zero means no bound.
func WithContextChars(n int) Option {
	return func(e *Engine) error {
		if n < 0 {
			return fmt.Errorf("context chars cannot be negative, got %d", n)
		}
		e.contextChars = n
		return nil
	}
}

// NewEngine creates a retrieval engine.
func NewEngine(chunks storage.ChunkRepository, embedder ai.Embedder, opts ...Option) (*Engine, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	e := &Engine{
		chunks:      chunks,
		embedder:    embedder,
		model:       ai.DefaultGenerationModel,
		temperature: DefaultAnswerTemperature,
		maxTokens:   DefaultAnswerMaxTokens,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "retrieval")
	return e, nil
}

// Retrieve returns up to TopK chunks of the owner ranked by descending score.
func (e *Engine) Retrieve(ctx context.Context, query Query) ([]Result, error) {
	return e.RetrieveWithMonitor(ctx, query, nil)
}

// RetrieveWithMonitor is Retrieve with callbacks at each stage.
func (e *Engine) RetrieveWithMonitor(ctx context.Context, query Query, monitor Monitor) ([]Result, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if query.OwnerID == "" {
		return nil, ErrOwnerRequired
	}
	if strings.TrimSpace(query.Text) == "" {
		return nil, ErrEmptyQuery
	}
	query.TopK = clampTopK(query.TopK)
	monitor.Start(query)

	vector, err := e.embedder.EmbedText(ctx, query.Text)
	if err != nil {
		e.logger.Error("error generating embedding for query", "owner_id", query.OwnerID, "error", err)
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if e.dims > 0 && len(vector) != e.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d", ErrDimensionMismatch, len(vector), e.dims)
	}
	monitor.AfterEmbedding(len(vector))

	matches, err := e.chunks.FindSimilar(ctx, storage.SimilarityQuery{
		OwnerID: query.OwnerID,
		JobID:   query.JobID,
		Vector:  vector,
		Limit:   query.TopK,
	})
	if err != nil {
		e.logger.Error("error querying for similar chunks", "owner_id", query.OwnerID, "error", err)
		return nil, err
	}
	monitor.AfterSearch(len(matches))

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		if m == nil || m.Chunk == nil {
			continue
		}
		results = append(results, Result{
			JobID:      m.Chunk.JobID,
			Filename:   m.Filename,
			Index:      m.Chunk.Index,
			Text:       m.Chunk.Text,
			TokenCount: m.Chunk.TokenCount,
			Score:      normalizeScore(m.Score),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > query.TopK {
		results = results[:query.TopK]
	}

	e.logger.Debug("retrieved chunks", "owner_id", query.OwnerID, "job_id", query.JobID, "results", len(results))
	monitor.Finish(results)
	return results, nil
}

func clampTopK(k int) int {
	switch {
	case k <= 0:
		return DefaultTopK
	case k > MaxTopK:
		return MaxTopK
	}
	return k
}

// normalizeScore maps a cosine similarity in [-1, 1] onto [0, 1]: opposite
// vectors score 0, orthogonal 0.5, identical 1. Values outside the range
// from float error are pinned to its ends.
func normalizeScore(cos float32) float32 {
	s := (1 + cos) / 2
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}
