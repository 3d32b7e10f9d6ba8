package jobs

import (
	"context"
	"errors"
	"fmt"
)

// Delete removes a job owned by owner from every store: its upload, its
// cache entry and index slot, and its durable row together with its chunks.
func (s *Service) Delete(ctx context.Context, owner, id string) error {
	job, err := s.owned(ctx, owner, id)
	if err != nil {
		return err
	}
	logger := s.logger.With("job_id", id, "owner_id", owner)

	if job.BlobKey != "" {
		if err := s.blobs.Delete(ctx, job.BlobBucket, job.BlobKey); err != nil {
			logger.Warn("failed to delete upload", "key", job.BlobKey, "error", err)
		}
	}
	if err := s.tracker.Remove(ctx, owner, id); err != nil {
		logger.Warn("failed to remove cache entry", "error", err)
	}
	if err := s.store.Jobs().DeleteJob(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("deleting job: %w", err)
	}
	logger.Info("job deleted")
	return nil
}
