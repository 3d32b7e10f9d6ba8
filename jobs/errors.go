package jobs

import (
	"errors"

	"github.com/poiesic/lectern/storage"
)

var (
	// ErrStoreRequired is returned when no durable store is provided.
	ErrStoreRequired = errors.New("durable store required")

	// ErrTrackerRequired is returned when no progress tracker is provided.
	ErrTrackerRequired = errors.New("progress tracker required")

	// ErrQueueRequired is returned when no queue is provided.
	ErrQueueRequired = errors.New("queue required")

	// ErrBlobStoreRequired is returned when no blob store is provided.
	ErrBlobStoreRequired = errors.New("blob store required")

	// ErrSummarizerRequired is returned by Summarize without a summarizer.
	ErrSummarizerRequired = errors.New("summarizer required")

	// ErrOwnerRequired is returned when an operation has no owner.
	ErrOwnerRequired = errors.New("owner id required")

	// ErrUnknownOwner is returned when the owner is not a registered user.
	ErrUnknownOwner = errors.New("unknown owner")

	// ErrEmptyUpload is returned for an upload without content.
	ErrEmptyUpload = errors.New("upload is empty")

	// ErrTooLarge is returned for an upload above the size limit.
	ErrTooLarge = errors.New("upload exceeds size limit")

	// ErrUnsupportedType is returned for content that is neither PDF nor text.
	ErrUnsupportedType = errors.New("unsupported content type")

	// ErrInvalidFilename is returned when no usable file name remains after cleaning.
	ErrInvalidFilename = errors.New("invalid filename")

	// ErrRateLimited is returned when an owner submits too quickly.
	ErrRateLimited = errors.New("too many submissions, slow down")

	// ErrInvalidPage is returned for out of range pagination.
	ErrInvalidPage = errors.New("page must be >= 1 and page size between 1 and 100")

	// ErrNotCompleted is returned when a result is requested before completion.
	ErrNotCompleted = errors.New("job is not completed")

	// ErrNotFound is returned when a job does not exist or belongs to another owner.
	ErrNotFound = storage.ErrNotFound
)
