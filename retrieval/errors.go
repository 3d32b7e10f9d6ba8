package retrieval

import (
	"errors"

	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
)

var (
	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrGeneratorRequired is returned by Ask when the engine has no generator.
	ErrGeneratorRequired = errors.New("generator required")

	// ErrEmptyQuery is returned for a blank query or question.
	ErrEmptyQuery = errors.New("query text is empty")

	// ErrOwnerRequired is returned when a query has no owner scope.
	ErrOwnerRequired = storage.ErrOwnerRequired

	// ErrDimensionMismatch is returned when the query embedding does not have
	// the configured dimension. It is a configuration error.
	ErrDimensionMismatch = core.ErrDimensionMismatch
)
