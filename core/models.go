package core

//go:generate go run ../cmd/musgen

import (
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// NewID returns a fresh opaque identifier for jobs and users.
func NewID() string {
	return uuid.NewString()
}

// Checksum returns the hex encoded BLAKE2b-256 digest of data.
// Identical uploads produce identical checksums.
func Checksum(data []byte) string {
	h, _ := blake2b.New(32, nil)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Timestamp normalizes t to UTC at microsecond precision, the resolution
// every store keeps.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Job is one submitted document and its processing outcome.
// The durable store holds the authoritative copy; the progress cache
// only ever holds a projection of it.
type Job struct {
	ID          string
	OwnerID     string
	Filename    string
	BlobBucket  string
	BlobKey     string
	ContentType string
	Checksum    string
	Prompt      string // optional summarization prompt

	Status   JobStatus
	Progress int

	// Result payload. ResultText and ErrorMessage are mutually exclusive
	// once the job is terminal.
	ResultText        string
	PageCount         int
	Summary           string
	ErrorMessage      string
	Extractor         string  // name of the extractor that produced ResultText
	ExtractionSeconds float64 // wall time spent producing the result

	Attempts int // number of claims that reached PROCESSING

	CreatedAt   time.Time
	StartedAt   time.Time // zero until the first claim
	CompletedAt time.Time // zero until COMPLETED
}

// NewJob returns a PENDING job stamped with createdAt.
func NewJob(id, ownerID, filename string, createdAt time.Time) *Job {
	return &Job{
		ID:        id,
		OwnerID:   ownerID,
		Filename:  filename,
		Status:    StatusPending,
		CreatedAt: Timestamp(createdAt),
	}
}

// Clone returns a copy of the job.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	return &c
}

// Result is the payload recorded when a job completes.
type Result struct {
	Text      string
	PageCount int
	Summary   string
	Extractor string
	Duration  time.Duration
}

// Chunk is one segment of a job's extracted text paired with its embedding.
type Chunk struct {
	JobID      string
	OwnerID    string // copied from the parent job
	Index      int    // zero-based, contiguous within a job
	Text       string
	Embedding  []float32
	TokenCount int
}

// ScoredChunk is a chunk returned from similarity search.
type ScoredChunk struct {
	Chunk    *Chunk
	Filename string
	Score    float32
}

// User owns jobs. OwnerID on jobs and chunks refers to User.ID.
type User struct {
	ID        string
	Email     string
	APIKey    string
	CreatedAt time.Time
}
