package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/lectern/blob"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/ingestion"
	"github.com/poiesic/lectern/progress"
	"github.com/poiesic/lectern/storage"
)

// Progress checkpoints written to the cache while a job is PROCESSING.
const (
	ProgressClaimed    = 0
	ProgressDownloaded = 10
	ProgressExtracting = 20
	ProgressExtracted  = 40
	ProgressSummarized = 50
	ProgressCompiled   = 70
)

// errDropped marks envelopes whose job no longer exists or has already
// moved past this claim. They are acknowledged without further work.
var errDropped = errors.New("envelope dropped")

// Process drives the job named by env to a terminal state. It returns nil
// when the job is COMPLETED with its chunks stored, and a *StageError
// otherwise.
func (c *Coordinator) Process(ctx context.Context, env core.Envelope) error {
	logger := c.logger.With("job_id", env.TaskID)

	job, err := c.load(ctx, env, logger)
	if err != nil {
		return err
	}
	if job.Status == core.StatusCompleted {
		// Redelivered after the durable commit; bring the cache in line.
		if err := c.tracker.Put(ctx, progress.EntryFromJob(job)); err != nil {
			return stageError(KindTransient, "cache", err)
		}
		logger.Info("job already completed")
		return nil
	}

	began := c.now()
	c.progress(ctx, job.ID, ProgressClaimed, logger)
	job, err = c.update(ctx, job.ID, "claim", func(j *core.Job) error {
		first, err := j.Start(c.now())
		if err == nil && !first {
			logger.Info("resuming redelivered job", "started_at", j.StartedAt, "attempts", j.Attempts)
		}
		return err
	})
	if err != nil {
		return err
	}

	bucket := env.BlobBucket
	if bucket == "" {
		bucket = job.BlobBucket
	}
	data, err := c.blobs.Get(ctx, bucket, env.BlobKey)
	if errors.Is(err, blob.ErrNotFound) {
		return c.fail(ctx, job, "download", fmt.Errorf("source document not found: %s", env.BlobKey), logger)
	}
	if err != nil {
		return stageError(KindTransient, "download", err)
	}
	c.progress(ctx, job.ID, ProgressDownloaded, logger)

	c.progress(ctx, job.ID, ProgressExtracting, logger)
	extracted, err := c.extractor.Extract(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return stageError(KindTransient, "extract", err)
		}
		return c.fail(ctx, job, "extract", fmt.Errorf("extraction failed: %w", err), logger)
	}
	logger.Info("text extracted", "extractor", extracted.Extractor, "pages", extracted.Pages, "chars", len(extracted.Text))
	c.progress(ctx, job.ID, ProgressExtracted, logger)

	prompt := env.Prompt
	if prompt == "" {
		prompt = job.Prompt
	}
	summaryText := c.summarize(ctx, prompt, extracted.Text, logger)
	c.progress(ctx, job.ID, ProgressSummarized, logger)
	c.progress(ctx, job.ID, ProgressCompiled, logger)

	job, err = c.update(ctx, job.ID, "complete", func(j *core.Job) error {
		now := c.now()
		return j.Complete(core.Result{
			Text:      extracted.Text,
			PageCount: extracted.Pages,
			Summary:   summaryText,
			Extractor: extracted.Extractor,
			Duration:  now.Sub(began),
		}, now)
	})
	if err != nil {
		return err
	}
	if err := c.tracker.Put(ctx, progress.EntryFromJob(job)); err != nil {
		return stageError(KindTransient, "cache", err)
	}
	logger.Info("job completed", "pages", job.PageCount, "seconds", job.ExtractionSeconds)

	return c.ingest(ctx, job, logger)
}

// load returns the durable job for env. A missing row is recreated from the
// envelope when the owner can be recovered from the blob key.
func (c *Coordinator) load(ctx context.Context, env core.Envelope, logger *slog.Logger) (*core.Job, error) {
	job, err := c.store.Jobs().GetJob(ctx, env.TaskID)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, stageError(KindTransient, "load", err)
	}

	owner := ownerFromKey(env.BlobKey, env.TaskID)
	if owner == "" {
		return nil, stageError(KindJobFatal, "load", fmt.Errorf("%w: no record for job %s", errDropped, env.TaskID))
	}
	created := env.CreatedAt
	if created.IsZero() {
		created = c.now()
	}
	job = core.NewJob(env.TaskID, owner, env.Filename, created)
	job.BlobBucket = env.BlobBucket
	job.BlobKey = env.BlobKey
	job.Prompt = env.Prompt

	if err := c.store.Jobs().CreateJob(ctx, job); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return c.load(ctx, env, logger)
		}
		return nil, stageError(KindTransient, "load", err)
	}
	if err := c.tracker.Register(ctx, progress.EntryFromJob(job)); err != nil {
		logger.Warn("failed to cache recreated job", "error", err)
	}
	logger.Warn("recreated missing job record from envelope", "owner_id", owner)
	return job, nil
}

// ownerFromKey recovers the owner from keys of the form
// uploads/{owner}/{job}/{filename}.
func ownerFromKey(key, jobID string) string {
	parts := strings.Split(key, "/")
	if len(parts) < 4 || parts[0] != "uploads" || parts[2] != jobID {
		return ""
	}
	return parts[1]
}

// update applies fn to the durable job in one transaction.
func (c *Coordinator) update(ctx context.Context, id, stage string, fn func(*core.Job) error) (*core.Job, error) {
	job, err := c.store.Jobs().UpdateJob(ctx, id, fn)
	switch {
	case err == nil:
		return job, nil
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, core.ErrInvalidTransition):
		return nil, stageError(KindJobFatal, stage, fmt.Errorf("%w: %w", errDropped, err))
	}
	return nil, stageError(KindTransient, stage, err)
}

// fail records the job FAILED durably, then in the cache.
func (c *Coordinator) fail(ctx context.Context, job *core.Job, stage string, cause error, logger *slog.Logger) error {
	message := cause.Error()
	failed, err := c.update(ctx, job.ID, stage, func(j *core.Job) error {
		return j.Fail(message)
	})
	if err != nil {
		return err
	}
	if err := c.tracker.Put(ctx, progress.EntryFromJob(failed)); err != nil {
		logger.Error("job failed but cache update failed", "error", err)
		return stageError(KindTransient, "cache", err)
	}
	return stageError(KindJobFatal, stage, cause)
}

// progress records a PROCESSING checkpoint in the cache. The cache is not
// authoritative, so failures are only logged.
func (c *Coordinator) progress(ctx context.Context, id string, p int, logger *slog.Logger) {
	if err := c.tracker.SetStatus(ctx, id, core.StatusProcessing, p); err != nil {
		logger.Warn("failed to record progress", "progress", p, "error", err)
	}
}

// summarize returns a summary of text for prompt, or "" when there is no
// prompt, no summarizer, or the model call fails.
func (c *Coordinator) summarize(ctx context.Context, prompt, text string, logger *slog.Logger) string {
	if c.summarizer == nil || strings.TrimSpace(prompt) == "" || strings.TrimSpace(text) == "" {
		return ""
	}
	s, err := c.summarizer.Summarize(ctx, text, prompt)
	if err != nil {
		logger.Warn("summary generation failed, continuing without summary", "error", err)
		return ""
	}
	return s
}

func (c *Coordinator) ingest(ctx context.Context, job *core.Job, logger *slog.Logger) error {
	if c.ingester == nil {
		return nil
	}
	start := time.Now()
	n, err := c.ingester.Ingest(ctx, job)
	switch {
	case err == nil:
		logger.Info("chunks stored", "chunks", n, "duration", time.Since(start))
		return nil
	case errors.Is(err, ingestion.ErrNoText):
		logger.Info("no text to ingest")
		return nil
	case errors.Is(err, core.ErrDimensionMismatch):
		return stageError(KindConfig, "ingest", err)
	}
	return stageError(KindDegraded, "ingest", err)
}
