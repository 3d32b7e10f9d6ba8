// Package progress holds the ephemeral, non-authoritative view of job state
// used for low-latency polling. Entries expire after a retention window; the
// durable store remains the source of truth.
package progress

import (
	"context"
	"time"
)

// DefaultTTL is the retention window applied to job entries.
const DefaultTTL = time.Hour

// DefaultStaleAfter is how long a PENDING or PROCESSING entry may go without
// a state change before readers check it against the durable store.
const DefaultStaleAfter = 10 * time.Minute

// AllJobs names the index of every known job.
const AllJobs = ""

// OwnerIndex names the index of one owner's jobs.
func OwnerIndex(owner string) string {
	return "owner:" + owner
}

// Cache is the low-level key-value contract shared by every backend.
// Implementations must be safe for concurrent use.
type Cache interface {
	// SetFields merges fields into the entry for id and refreshes its
	// retention TTL.
	SetFields(ctx context.Context, id string, fields map[string]string) error

	// Fields returns every field of the entry for id.
	// Returns ErrNotFound when the entry is absent or expired.
	Fields(ctx context.Context, id string) (map[string]string, error)

	// Delete removes the entry for id. Deleting a missing entry is not an error.
	Delete(ctx context.Context, id string) error

	// AppendIndex appends id to the named list of job ids.
	AppendIndex(ctx context.Context, index, id string) error

	// IndexRange returns up to limit ids of the named index starting at
	// offset, in insertion order.
	IndexRange(ctx context.Context, index string, offset, limit int) ([]string, error)

	// IndexLen returns the number of ids in the named index.
	IndexLen(ctx context.Context, index string) (int, error)

	// RemoveIndex removes every occurrence of id from the named index.
	RemoveIndex(ctx context.Context, index, id string) error

	// SetValue stores a plain string under key for ttl.
	SetValue(ctx context.Context, key, value string, ttl time.Duration) error

	// Value returns the string stored under key.
	// Returns ErrNotFound when the key is absent or expired.
	Value(ctx context.Context, key string) (string, error)

	Close() error
}
