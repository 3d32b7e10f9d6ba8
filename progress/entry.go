package progress

import (
	"fmt"
	"strconv"
	"time"

	"github.com/poiesic/lectern/core"
)

// Field names of the cached projection.
const (
	FieldTaskID      = "task_id"
	FieldOwnerID     = "owner_id"
	FieldStatus      = "status"
	FieldProgress    = "progress"
	FieldFilename    = "filename"
	FieldBlobBucket  = "blob_bucket"
	FieldBlobKey     = "blob_key"
	FieldCreatedAt   = "created_at"
	FieldStartedAt   = "started_at"
	FieldCompletedAt = "completed_at"
	FieldError       = "error"
	FieldPrompt      = "prompt"
)

// Entry is the fixed-schema projection of a Job held in the cache.
type Entry struct {
	TaskID      string
	OwnerID     string
	Status      core.JobStatus
	Progress    int
	Filename    string
	BlobBucket  string
	BlobKey     string
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
	Error       string
	Prompt      string
}

// EntryFromJob projects a durable job into its cache form.
func EntryFromJob(job *core.Job) Entry {
	return Entry{
		TaskID:      job.ID,
		OwnerID:     job.OwnerID,
		Status:      job.Status,
		Progress:    job.Progress,
		Filename:    job.Filename,
		BlobBucket:  job.BlobBucket,
		BlobKey:     job.BlobKey,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		Error:       job.ErrorMessage,
		Prompt:      job.Prompt,
	}
}

// Fields encodes the entry. Zero times encode as empty strings.
func (e Entry) Fields() map[string]string {
	return map[string]string{
		FieldTaskID:      e.TaskID,
		FieldOwnerID:     e.OwnerID,
		FieldStatus:      string(e.Status),
		FieldProgress:    strconv.Itoa(e.Progress),
		FieldFilename:    e.Filename,
		FieldBlobBucket:  e.BlobBucket,
		FieldBlobKey:     e.BlobKey,
		FieldCreatedAt:   formatTime(e.CreatedAt),
		FieldStartedAt:   formatTime(e.StartedAt),
		FieldCompletedAt: formatTime(e.CompletedAt),
		FieldError:       e.Error,
		FieldPrompt:      e.Prompt,
	}
}

// DecodeEntry validates and decodes cached fields.
// task_id, status and progress are required; any failure wraps ErrMalformedEntry.
func DecodeEntry(fields map[string]string) (*Entry, error) {
	for _, name := range []string{FieldTaskID, FieldStatus, FieldProgress} {
		if fields[name] == "" {
			return nil, fmt.Errorf("%w: missing %s", ErrMalformedEntry, name)
		}
	}

	status, err := core.ParseStatus(fields[FieldStatus])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEntry, err)
	}
	progress, err := strconv.Atoi(fields[FieldProgress])
	if err != nil || progress < 0 || progress > 100 {
		return nil, fmt.Errorf("%w: progress %q", ErrMalformedEntry, fields[FieldProgress])
	}

	entry := &Entry{
		TaskID:     fields[FieldTaskID],
		OwnerID:    fields[FieldOwnerID],
		Status:     status,
		Progress:   progress,
		Filename:   fields[FieldFilename],
		BlobBucket: fields[FieldBlobBucket],
		BlobKey:    fields[FieldBlobKey],
		Error:      fields[FieldError],
		Prompt:     fields[FieldPrompt],
	}
	times := []struct {
		name string
		dst  *time.Time
	}{
		{FieldCreatedAt, &entry.CreatedAt},
		{FieldStartedAt, &entry.StartedAt},
		{FieldCompletedAt, &entry.CompletedAt},
	}
	for _, t := range times {
		if *t.dst, err = parseTime(fields[t.name]); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedEntry, t.name, err)
		}
	}
	return entry, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
