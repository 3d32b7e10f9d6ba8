package progress

import "errors"

var (
	// ErrNotFound is returned when a cache entry is absent or has expired.
	ErrNotFound = errors.New("cache entry not found")

	// ErrMalformedEntry is returned when a cached projection fails validation.
	ErrMalformedEntry = errors.New("malformed cache entry")

	// ErrCacheClosed is returned when operating on a closed cache.
	ErrCacheClosed = errors.New("cache is closed")

	// ErrCacheRequired is returned when a Tracker is built without a cache.
	ErrCacheRequired = errors.New("cache is required")
)
