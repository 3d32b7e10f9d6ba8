package reingest

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrStoreRequired is returned when no durable store is provided.
	ErrStoreRequired = errors.New("durable store required")

	// ErrIngesterRequired is returned when no ingester is provided.
	ErrIngesterRequired = errors.New("ingester required")

	// ErrReingesterRequired is returned when a scheduler has nothing to run.
	ErrReingesterRequired = errors.New("reingester required")
)
