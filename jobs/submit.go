package jobs

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/poiesic/lectern/blob"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/progress"
)

// Upload is one document handed to Submit.
type Upload struct {
	OwnerID     string
	Filename    string
	Data        []byte
	ContentType string // sniffed when empty
	Prompt      string // optional summarization prompt
}

// Submit stores the upload, records a PENDING job and enqueues it.
// When enqueueing fails the job, its cache entry and its blob are removed
// again and the error is returned.
func (s *Service) Submit(ctx context.Context, upload Upload) (*core.Job, error) {
	if strings.TrimSpace(upload.OwnerID) == "" {
		return nil, ErrOwnerRequired
	}
	filename, err := cleanFilename(upload.Filename)
	if err != nil {
		return nil, err
	}
	if err := s.checkContent(upload.Data); err != nil {
		return nil, err
	}
	if s.knownOwners {
		if _, err := s.store.Users().GetUser(ctx, upload.OwnerID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrUnknownOwner, upload.OwnerID)
			}
			return nil, err
		}
	}
	if !s.allow(upload.OwnerID) {
		return nil, ErrRateLimited
	}
	if s.gate != nil {
		if _, err := s.gate.Admit(ctx, 1); err != nil {
			return nil, err
		}
	}

	job := core.NewJob(core.NewID(), upload.OwnerID, filename, s.now())
	job.BlobBucket = s.bucket
	job.BlobKey = fmt.Sprintf("uploads/%s/%s/%s", upload.OwnerID, job.ID, filename)
	job.ContentType = blob.ContentType(upload.Data, upload.ContentType)
	job.Checksum = core.Checksum(upload.Data)
	job.Prompt = strings.TrimSpace(upload.Prompt)

	logger := s.logger.With("job_id", job.ID, "owner_id", job.OwnerID)

	if err := s.blobs.Put(ctx, job.BlobBucket, job.BlobKey, upload.Data, job.ContentType); err != nil {
		return nil, fmt.Errorf("storing upload: %w", err)
	}
	if err := s.store.Jobs().CreateJob(ctx, job); err != nil {
		s.discardBlob(ctx, job)
		return nil, fmt.Errorf("recording job: %w", err)
	}
	if err := s.tracker.Register(ctx, progress.EntryFromJob(job)); err != nil {
		// Status falls back to the durable row.
		logger.Warn("failed to cache new job", "error", err)
	}

	if err := s.queue.Send(ctx, core.EnvelopeFor(job)); err != nil {
		logger.Error("failed to enqueue job, rolling back", "error", err)
		s.rollback(ctx, job)
		return nil, fmt.Errorf("enqueueing job: %w", err)
	}

	logger.Info("job submitted", "filename", filename, "bytes", len(upload.Data), "content_type", job.ContentType)
	return job, nil
}

func (s *Service) checkContent(data []byte) error {
	if len(data) == 0 {
		return ErrEmptyUpload
	}
	if len(data) > s.maxBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), s.maxBytes)
	}
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("application/pdf") || m.Is("text/plain") {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedType, mt.String())
}

func cleanFilename(name string) (string, error) {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	base := path.Base(name)
	if base == "." || base == "/" || base == ".." || base == "" {
		return "", ErrInvalidFilename
	}
	return base, nil
}

func (s *Service) rollback(ctx context.Context, job *core.Job) {
	ctx = context.WithoutCancel(ctx)
	if err := s.tracker.Remove(ctx, job.OwnerID, job.ID); err != nil {
		s.logger.Warn("rollback: failed to remove cache entry", "job_id", job.ID, "error", err)
	}
	if err := s.store.Jobs().DeleteJob(ctx, job.ID); err != nil {
		s.logger.Warn("rollback: failed to delete job", "job_id", job.ID, "error", err)
	}
	s.discardBlob(ctx, job)
}

func (s *Service) discardBlob(ctx context.Context, job *core.Job) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), job.BlobBucket, job.BlobKey); err != nil {
		s.logger.Warn("failed to delete upload", "job_id", job.ID, "key", job.BlobKey, "error", err)
	}
}
