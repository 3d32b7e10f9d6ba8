package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/lectern/ai"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/segment"
	"github.com/poiesic/lectern/storage"
)

// DefaultBatchSize is the number of texts per embedding request.
const DefaultBatchSize = 100

// Writer embeds a job's segments and stores them as its chunk set.
type Writer struct {
	chunks    storage.ChunkRepository
	embedder  ai.Embedder
	batchSize int
	dims      int
	logger    *slog.Logger
}

// WriterOption configures a Writer.
type WriterOption func(*Writer) error

// WithBatchSize sets the number of texts per embedding request.
func WithBatchSize(size int) WriterOption {
	return func(w *Writer) error {
		if size < 1 {
			return fmt.Errorf("batch size must be positive: %d", size)
		}
		w.batchSize = size
		return nil
	}
}

// WithDimensions sets the vector length every embedding must have.
// Zero skips the check.
func WithDimensions(dims int) WriterOption {
	return func(w *Writer) error {
		if dims < 0 {
			return fmt.Errorf("dimensions cannot be negative: %d", dims)
		}
		w.dims = dims
		return nil
	}
}

// WithWriterLogger sets a custom logger.
func WithWriterLogger(logger *slog.Logger) WriterOption {
	return func(w *Writer) error {
		if logger == nil {
			logger = slog.Default()
		}
		w.logger = logger.With("component", "embedding-writer")
		return nil
	}
}

// NewWriter creates a Writer.
func NewWriter(chunks storage.ChunkRepository, embedder ai.Embedder, opts ...WriterOption) (*Writer, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	w := &Writer{
		chunks:    chunks,
		embedder:  embedder,
		batchSize: DefaultBatchSize,
		logger:    slog.Default().With("component", "embedding-writer"),
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Write embeds segments in batches and replaces the job's chunk set in one
// transaction. Nothing is stored unless every batch returned one vector
// per text with the configured dimension. Returns the number of chunks
// written.
func (w *Writer) Write(ctx context.Context, job *core.Job, segments []segment.Segment) (int, error) {
	vectors := make([][]float32, 0, len(segments))
	for start := 0; start < len(segments); start += w.batchSize {
		end := min(start+w.batchSize, len(segments))
		texts := make([]string, end-start)
		for i, seg := range segments[start:end] {
			texts[i] = seg.Text
		}

		w.logger.Debug("embedding batch", "job_id", job.ID, "from", start, "count", len(texts))
		batch, err := w.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(batch) != len(texts) {
			return 0, fmt.Errorf("%w: sent %d texts, received %d vectors", ErrEmbeddingMismatch, len(texts), len(batch))
		}
		for i, vec := range batch {
			if w.dims > 0 && len(vec) != w.dims {
				return 0, fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
					ErrDimensionMismatch, start+i, len(vec), w.dims)
			}
		}
		vectors = append(vectors, batch...)
	}

	chunks := make([]*core.Chunk, len(segments))
	for i, seg := range segments {
		chunks[i] = &core.Chunk{
			JobID:      job.ID,
			OwnerID:    job.OwnerID,
			Index:      i,
			Text:       seg.Text,
			Embedding:  vectors[i],
			TokenCount: seg.Tokens,
		}
	}

	if err := w.chunks.ReplaceChunks(ctx, job.ID, chunks); err != nil {
		return 0, err
	}
	w.logger.Info("stored chunks", "job_id", job.ID, "chunks", len(chunks))
	return len(chunks), nil
}
