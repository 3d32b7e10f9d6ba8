package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/poiesic/lectern/core"
)

// Tracker is the typed handle producers and workers use to read and write
// job projections.
type Tracker struct {
	cache  Cache
	logger *slog.Logger
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker) error

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) TrackerOption {
	return func(t *Tracker) error {
		t.logger = logger
		return nil
	}
}

// NewTracker wraps cache.
func NewTracker(cache Cache, opts ...TrackerOption) (*Tracker, error) {
	if cache == nil {
		return nil, ErrCacheRequired
	}
	t := &Tracker{cache: cache, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	t.logger = t.logger.With("component", "progress")
	return t, nil
}

// Cache returns the underlying cache.
func (t *Tracker) Cache() Cache {
	return t.cache
}

// Register writes the initial projection of a new job and appends it to the
// global index and its owner's index.
func (t *Tracker) Register(ctx context.Context, entry Entry) error {
	if entry.OwnerID == "" {
		return fmt.Errorf("%w: missing %s", ErrMalformedEntry, FieldOwnerID)
	}
	if err := t.cache.SetFields(ctx, entry.TaskID, entry.Fields()); err != nil {
		return err
	}
	if err := t.cache.AppendIndex(ctx, AllJobs, entry.TaskID); err != nil {
		return err
	}
	return t.cache.AppendIndex(ctx, OwnerIndex(entry.OwnerID), entry.TaskID)
}

// Put overwrites the full projection.
func (t *Tracker) Put(ctx context.Context, entry Entry) error {
	return t.cache.SetFields(ctx, entry.TaskID, entry.Fields())
}

// SetStatus updates only status and progress. task_id is rewritten so an
// entry recreated after expiry still decodes.
func (t *Tracker) SetStatus(ctx context.Context, id string, status core.JobStatus, progress int) error {
	return t.cache.SetFields(ctx, id, map[string]string{
		FieldTaskID:   id,
		FieldStatus:   string(status),
		FieldProgress: strconv.Itoa(progress),
	})
}

// Get returns the decoded projection for id.
func (t *Tracker) Get(ctx context.Context, id string) (*Entry, error) {
	fields, err := t.cache.Fields(ctx, id)
	if err != nil {
		return nil, err
	}
	entry, err := DecodeEntry(fields)
	if err != nil {
		t.logger.Warn("malformed cache entry", "task_id", id, "err", err)
		return nil, err
	}
	return entry, nil
}

// Remove deletes the projection and its index entries.
func (t *Tracker) Remove(ctx context.Context, owner, id string) error {
	return errors.Join(
		t.cache.Delete(ctx, id),
		t.cache.RemoveIndex(ctx, AllJobs, id),
		t.cache.RemoveIndex(ctx, OwnerIndex(owner), id),
	)
}

// Tracked returns how many jobs the global index holds.
func (t *Tracker) Tracked(ctx context.Context) (int, error) {
	return t.cache.IndexLen(ctx, AllJobs)
}

// Fallback resolves an entry the cache no longer holds. It returns
// ErrNotFound when the id is unknown everywhere.
type Fallback func(ctx context.Context, id string) (*Entry, error)

// List returns one page of owner's indexed entries, in index order, and the
// length of owner's index. Expired entries are resolved through fallback
// when it is non-nil and skipped otherwise. Malformed entries, and entries
// that name another owner, are skipped.
func (t *Tracker) List(ctx context.Context, owner string, offset, limit int, fallback Fallback) ([]*Entry, int, error) {
	index := OwnerIndex(owner)
	total, err := t.cache.IndexLen(ctx, index)
	if err != nil {
		return nil, 0, err
	}
	ids, err := t.cache.IndexRange(ctx, index, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	entries := make([]*Entry, 0, len(ids))
	for _, id := range ids {
		entry, err := t.Get(ctx, id)
		if errors.Is(err, ErrNotFound) && fallback != nil {
			entry, err = fallback(ctx, id)
		}
		switch {
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrMalformedEntry):
			continue
		case err != nil:
			return nil, 0, err
		}
		if entry.OwnerID != owner {
			t.logger.Warn("indexed entry belongs to another owner", "task_id", id, "index", index)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, total, nil
}
