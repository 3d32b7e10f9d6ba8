package storage

import (
	"context"

	"github.com/poiesic/lectern/core"
)

// Store aggregates the repositories of one durable backend.
// Implementations must be thread-safe and support concurrent access.
type Store interface {
	Jobs() JobRepository
	Chunks() ChunkRepository
	Users() UserRepository

	// Close closes the storage backend and releases resources.
	Close() error
}

// JobFilter narrows ListJobs. Zero values mean "no filter".
type JobFilter struct {
	OwnerID string
	Status  core.JobStatus
	Offset  int
	Limit   int // 0 returns every match
}

// JobRepository provides operations for managing jobs.
type JobRepository interface {
	// CreateJob stores a new job.
	// Returns ErrDuplicateKey if a job with the same ID exists.
	CreateJob(ctx context.Context, job *core.Job) error

	// GetJob retrieves a job by ID.
	// Returns ErrNotFound if the job doesn't exist.
	GetJob(ctx context.Context, id string) (*core.Job, error)

	// UpdateJob atomically reads the job, applies fn, and writes the result
	// back in a single transaction. If fn returns an error nothing is written
	// and the error is returned unchanged. The updated job is returned.
	// Returns ErrNotFound if the job doesn't exist.
	UpdateJob(ctx context.Context, id string, fn func(job *core.Job) error) (*core.Job, error)

	// DeleteJob removes a job and all of its chunks in one transaction.
	// Returns ErrNotFound if the job doesn't exist.
	DeleteJob(ctx context.Context, id string) error

	// ListJobs returns jobs matching filter, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*core.Job, error)
}

// SimilarityQuery describes a nearest-neighbor search over chunk embeddings.
type SimilarityQuery struct {
	OwnerID string // required; results never cross owners
	JobID   string // optional
	Vector  []float32
	Limit   int
}

// Validate checks the query before it reaches a backend.
func (q SimilarityQuery) Validate() error {
	if q.OwnerID == "" {
		return ErrOwnerRequired
	}
	if len(q.Vector) == 0 || q.Limit <= 0 {
		return ErrInvalidQuery
	}
	return nil
}

// ChunkRepository provides operations for managing chunks and their embeddings.
type ChunkRepository interface {
	// ReplaceChunks replaces the complete chunk set of a job in a single
	// transaction. Readers observe either the previous set or the new one.
	// The set is validated with core.ValidateChunkSet first.
	ReplaceChunks(ctx context.Context, jobID string, chunks []*core.Chunk) error

	// GetChunks returns a job's chunks ordered by index.
	GetChunks(ctx context.Context, jobID string) ([]*core.Chunk, error)

	// CountChunks returns the number of chunks stored for a job.
	CountChunks(ctx context.Context, jobID string) (int, error)

	// FindSimilar returns up to query.Limit chunks owned by query.OwnerID,
	// ordered by descending cosine similarity to query.Vector. Score holds the
	// raw cosine similarity in [-1, 1].
	// Returns an empty slice when the owner has no chunks.
	FindSimilar(ctx context.Context, query SimilarityQuery) ([]*core.ScoredChunk, error)
}

// UserRepository provides operations for managing users.
type UserRepository interface {
	// CreateUser stores a new user.
	// Returns ErrDuplicateKey if the ID or API key is taken.
	CreateUser(ctx context.Context, user *core.User) error

	// GetUser retrieves a user by ID.
	// Returns ErrNotFound if the user doesn't exist.
	GetUser(ctx context.Context, id string) (*core.User, error)

	// GetUserByAPIKey retrieves a user by API key.
	// Returns ErrNotFound if no user holds the key.
	GetUserByAPIKey(ctx context.Context, apiKey string) (*core.User, error)
}
