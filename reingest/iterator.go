package reingest

import (
	"context"

	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
)

const (
	// DefaultBatchSize is the default number of jobs to fetch in each page
	DefaultBatchSize = 100
)

// JobIterator pages through COMPLETED jobs, newest first.
type JobIterator struct {
	jobs      storage.JobRepository
	ownerID   string
	batchSize int
}

// NewJobIterator creates an iterator limited to ownerID when it is non-empty.
func NewJobIterator(jobs storage.JobRepository, ownerID string, batchSize int) *JobIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &JobIterator{jobs: jobs, ownerID: ownerID, batchSize: batchSize}
}

// ForEach calls fn with each page of completed jobs. Iteration stops on the
// first error from fn. Context cancellation is checked between pages.
func (it *JobIterator) ForEach(ctx context.Context, fn func([]*core.Job) error) error {
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := it.jobs.ListJobs(ctx, storage.JobFilter{
			OwnerID: it.ownerID,
			Status:  core.StatusCompleted,
			Offset:  offset,
			Limit:   it.batchSize,
		})
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		if len(page) < it.batchSize {
			return nil
		}
		offset += len(page)
	}
}
