package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
)

const jobColumns = `id, user_id, filename, blob_bucket, s3_key, content_type, checksum, prompt,
	status, progress, result_text, page_count, summary, error_message, extractor,
	extraction_time_seconds, attempts, created_at, started_at, completed_at`

// JobRepository implements storage.JobRepository on the documents table.
type JobRepository struct {
	pool *pgxpool.Pool
}

var _ storage.JobRepository = (*JobRepository)(nil)

func (r *JobRepository) CreateJob(ctx context.Context, job *core.Job) error {
	if err := core.ValidateJob(job); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO documents (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		jobArgs(job)...)
	return translateError(err)
}

func (r *JobRepository) GetJob(ctx context.Context, id string) (*core.Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM documents WHERE id = $1`, id)
	job, err := scanJob(row)
	if err != nil {
		return nil, translateError(err)
	}
	return job, nil
}

// UpdateJob locks the row with SELECT ... FOR UPDATE for the duration of fn.
func (r *JobRepository) UpdateJob(ctx context.Context, id string, fn func(job *core.Job) error) (*core.Job, error) {
	var updated *core.Job
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM documents WHERE id = $1 FOR UPDATE`, id)
		job, err := scanJob(row)
		if err != nil {
			return translateError(err)
		}
		if err := fn(job); err != nil {
			return err
		}
		if err := core.ValidateJob(job); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE documents SET
			user_id = $2, filename = $3, blob_bucket = $4, s3_key = $5, content_type = $6,
			checksum = $7, prompt = $8, status = $9, progress = $10, result_text = $11,
			page_count = $12, summary = $13, error_message = $14, extractor = $15,
			extraction_time_seconds = $16, attempts = $17, created_at = $18,
			started_at = $19, completed_at = $20
			WHERE id = $1`, jobArgs(job)...)
		if err != nil {
			return translateError(err)
		}
		updated = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteJob relies on ON DELETE CASCADE to drop the job's chunks.
func (r *JobRepository) DeleteJob(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *JobRepository) ListJobs(ctx context.Context, filter storage.JobFilter) ([]*core.Job, error) {
	if filter.Offset < 0 || filter.Limit < 0 {
		return nil, storage.ErrInvalidQuery
	}

	where, args := jobWhere(filter)
	var sb strings.Builder
	sb.WriteString(`SELECT ` + jobColumns + ` FROM documents` + where)
	sb.WriteString(" ORDER BY created_at DESC, id DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var jobs []*core.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, translateError(rows.Err())
}

// jobWhere renders filter's owner and status as a WHERE clause.
func jobWhere(filter storage.JobFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(where) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

func jobArgs(job *core.Job) []any {
	return []any{
		job.ID, job.OwnerID, job.Filename, job.BlobBucket, job.BlobKey, job.ContentType,
		job.Checksum, job.Prompt, string(job.Status), job.Progress, job.ResultText,
		job.PageCount, job.Summary, job.ErrorMessage, job.Extractor,
		job.ExtractionSeconds, job.Attempts, job.CreatedAt,
		nullTime(job.StartedAt), nullTime(job.CompletedAt),
	}
}

func scanJob(row pgx.Row) (*core.Job, error) {
	var (
		job                core.Job
		status             string
		started, completed *time.Time
	)
	err := row.Scan(
		&job.ID, &job.OwnerID, &job.Filename, &job.BlobBucket, &job.BlobKey, &job.ContentType,
		&job.Checksum, &job.Prompt, &status, &job.Progress, &job.ResultText,
		&job.PageCount, &job.Summary, &job.ErrorMessage, &job.Extractor,
		&job.ExtractionSeconds, &job.Attempts, &job.CreatedAt, &started, &completed,
	)
	if err != nil {
		return nil, err
	}
	job.Status, err = core.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	job.CreatedAt = job.CreatedAt.UTC()
	job.StartedAt = fromNullTime(started)
	job.CompletedAt = fromNullTime(completed)
	return &job, nil
}
