package jobs

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/progress"
	"github.com/poiesic/lectern/storage"
)

// Page is one page of List.
type Page struct {
	Entries  []*progress.Entry
	Total    int
	Page     int
	PageSize int
}

// Status returns the progress projection of a job owned by owner. The cache
// is consulted first. An absent or malformed entry, or a PENDING or
// PROCESSING entry older than the stale window, is checked against the
// durable row; a cached state the row has moved past is rewritten.
func (s *Service) Status(ctx context.Context, owner, id string) (*progress.Entry, error) {
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	cached, err := s.tracker.Get(ctx, id)
	switch {
	case err == nil:
		if cached.OwnerID == owner && !s.stale(cached) {
			return cached, nil
		}
	case !errors.Is(err, progress.ErrNotFound) && !errors.Is(err, progress.ErrMalformedEntry):
		s.logger.Warn("cache read failed, using durable store", "job_id", id, "error", err)
	}

	entry, err := s.durableEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.OwnerID != owner {
		return nil, progress.ErrNotFound
	}
	if cached == nil || cached.OwnerID != owner {
		return entry, nil
	}
	if cached.Status == entry.Status {
		// Same state; the cache carries the finer progress.
		return cached, nil
	}
	s.logger.Warn("cache entry behind durable store, repairing",
		"job_id", id, "cached", cached.Status, "durable", entry.Status)
	if err := s.tracker.Put(ctx, *entry); err != nil {
		s.logger.Warn("failed to repair cache entry", "job_id", id, "error", err)
	}
	return entry, nil
}

// stale reports whether a non-terminal entry has gone without a state
// change for longer than the stale window.
func (s *Service) stale(entry *progress.Entry) bool {
	if entry.Status.Terminal() {
		return false
	}
	since := entry.CreatedAt
	if entry.StartedAt.After(since) {
		since = entry.StartedAt
	}
	return s.now().Sub(since) >= s.staleAfter
}

func (s *Service) durableEntry(ctx context.Context, id string) (*progress.Entry, error) {
	job, err := s.store.Jobs().GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, progress.ErrNotFound
		}
		return nil, err
	}
	entry := progress.EntryFromJob(job)
	return &entry, nil
}

// Result returns the completed job owned by owner.
func (s *Service) Result(ctx context.Context, owner, id string) (*core.Job, error) {
	job, err := s.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if job.Status != core.StatusCompleted {
		return nil, fmt.Errorf("%w: current status %s", ErrNotCompleted, job.Status)
	}
	return job, nil
}

// Job returns the durable record of a job owned by owner, in any state.
func (s *Service) Job(ctx context.Context, owner, id string) (*core.Job, error) {
	return s.owned(ctx, owner, id)
}

func (s *Service) owned(ctx context.Context, owner, id string) (*core.Job, error) {
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	job, err := s.store.Jobs().GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != owner {
		return nil, ErrNotFound
	}
	return job, nil
}

// List returns one page of owner's tracked jobs, newest first. Jobs whose
// cache entry expired are filled in from the durable store.
func (s *Service) List(ctx context.Context, owner string, page, pageSize int) (*Page, error) {
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	if page < 1 || pageSize < 1 || pageSize > MaxPageSize {
		return nil, ErrInvalidPage
	}

	total, err := s.tracker.Cache().IndexLen(ctx, progress.OwnerIndex(owner))
	if err != nil {
		return nil, err
	}
	// The index is oldest first; page from its tail.
	end := total - (page-1)*pageSize
	start := max(end-pageSize, 0)
	if end <= 0 {
		return &Page{Entries: []*progress.Entry{}, Total: total, Page: page, PageSize: pageSize}, nil
	}

	entries, total, err := s.tracker.List(ctx, owner, start, end-start, s.durableEntry)
	if err != nil {
		return nil, err
	}
	slices.Reverse(entries)
	return &Page{Entries: entries, Total: total, Page: page, PageSize: pageSize}, nil
}

// Documents lists an owner's durable job records, newest first.
// status may be empty to include every state.
func (s *Service) Documents(ctx context.Context, owner string, status core.JobStatus, offset, limit int) ([]*core.Job, error) {
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	if offset < 0 || limit < 0 {
		return nil, ErrInvalidPage
	}
	if limit == 0 {
		limit = MaxPageSize
	}
	return s.store.Jobs().ListJobs(ctx, storage.JobFilter{
		OwnerID: owner,
		Status:  status,
		Offset:  offset,
		Limit:   min(limit, 1000),
	})
}
