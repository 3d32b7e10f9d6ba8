package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
)

// JobRepository implements storage.JobRepository for BadgerDB.
type JobRepository struct {
	backend *Backend
}

var _ storage.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository.
func NewJobRepository(backend *Backend) *JobRepository {
	return &JobRepository{backend: backend}
}

// CreateJob stores a new job and its creation-time index entry.
func (r *JobRepository) CreateJob(ctx context.Context, job *core.Job) error {
	if err := core.ValidateJob(job); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeJobKey(job.ID)
		if _, err := tx.Get(key); err == nil {
			return storage.ErrDuplicateKey
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		value, err := storage.MarshalJob(job)
		if err != nil {
			return err
		}
		if err := tx.Set(key, value); err != nil {
			return err
		}
		return tx.Set(makeJobCreatedKey(job.CreatedAt, job.ID), []byte(job.ID))
	}, true)
}

// GetJob retrieves a job by ID.
func (r *JobRepository) GetJob(ctx context.Context, id string) (*core.Job, error) {
	var job *core.Job
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		job, err = readJob(tx, id)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// UpdateJob applies fn to the stored job inside one read-write transaction.
func (r *JobRepository) UpdateJob(ctx context.Context, id string, fn func(job *core.Job) error) (*core.Job, error) {
	var updated *core.Job
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		job, err := readJob(tx, id)
		if err != nil {
			return err
		}
		if err := fn(job); err != nil {
			return err
		}
		if err := core.ValidateJob(job); err != nil {
			return err
		}
		value, err := storage.MarshalJob(job)
		if err != nil {
			return err
		}
		if err := tx.Set(makeJobKey(id), value); err != nil {
			return err
		}
		updated = job
		return nil
	}, true)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteJob removes a job, its index entry and every chunk it owns.
func (r *JobRepository) DeleteJob(ctx context.Context, id string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		job, err := readJob(tx, id)
		if err != nil {
			return err
		}
		if err := deleteChunks(tx, id); err != nil {
			return err
		}
		if err := tx.Delete(makeJobCreatedKey(job.CreatedAt, id)); err != nil {
			return err
		}
		return tx.Delete(makeJobKey(id))
	}, true)
}

// ListJobs walks the creation-time index from newest to oldest.
func (r *JobRepository) ListJobs(ctx context.Context, filter storage.JobFilter) ([]*core.Job, error) {
	if filter.Offset < 0 || filter.Limit < 0 {
		return nil, storage.ErrInvalidQuery
	}

	var jobs []*core.Job
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := []byte(jobCreatedPrefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		skipped := 0
		for iter.Seek(prefixEnd(prefix)); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			id := jobIDFromCreatedKey(iter.Item().KeyCopy(nil))
			job, err := readJob(tx, id)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if !matches(filter, job) {
				continue
			}
			if skipped < filter.Offset {
				skipped++
				continue
			}
			jobs = append(jobs, job)
			if filter.Limit > 0 && len(jobs) >= filter.Limit {
				break
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func matches(filter storage.JobFilter, job *core.Job) bool {
	if filter.OwnerID != "" && job.OwnerID != filter.OwnerID {
		return false
	}
	return filter.Status == "" || job.Status == filter.Status
}

// readJob reads and decodes a job within an existing transaction.
// Returns storage.ErrNotFound when the key is absent.
func readJob(tx *badger.Txn, id string) (*core.Job, error) {
	item, err := tx.Get(makeJobKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var job *core.Job
	err = item.Value(func(val []byte) error {
		job, err = storage.UnmarshalJob(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}
