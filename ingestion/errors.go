package ingestion

import (
	"errors"

	"github.com/poiesic/lectern/core"
)

var (
	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrSegmenterRequired is returned when a segmenter is not provided.
	ErrSegmenterRequired = errors.New("segmenter required")

	// ErrWriterRequired is returned when an embedding writer is not provided.
	ErrWriterRequired = errors.New("embedding writer required")

	// ErrIngesterRequired is returned when a pipeline has nothing to run.
	ErrIngesterRequired = errors.New("ingester required")

	// ErrEmbeddingMismatch is returned when the service returns a different
	// number of vectors than texts sent.
	ErrEmbeddingMismatch = errors.New("embedding count mismatch")

	// ErrDimensionMismatch is returned when a vector length differs from the
	// configured dimension. It matches core.ErrDimensionMismatch.
	ErrDimensionMismatch = core.ErrDimensionMismatch

	// ErrNoText is returned when a job has no extracted text to ingest.
	ErrNoText = errors.New("job has no extracted text")
)
