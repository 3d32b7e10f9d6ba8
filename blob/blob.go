// Package blob stores raw uploaded documents keyed by bucket and key.
package blob

import (
	"context"
	"errors"

	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrNotFound is returned when no object exists at bucket/key.
	ErrNotFound = errors.New("blob not found")

	// ErrInvalidKey is returned for keys that are empty or escape their bucket.
	ErrInvalidKey = errors.New("invalid blob key")
)

// Store is an opaque durable byte store.
type Store interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Delete(ctx context.Context, bucket, key string) error
	Exists(ctx context.Context, bucket, key string) (bool, error)
}

// ContentType returns contentType, or the type sniffed from data when it is empty.
func ContentType(data []byte, contentType string) string {
	if contentType != "" {
		return contentType
	}
	return mimetype.Detect(data).String()
}
