// Package fs implements blob.Store on the local filesystem. Each bucket is a
// directory under the root.
package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/lectern/blob"
)

// Store implements blob.Store.
type Store struct {
	root string
}

var _ blob.Store = (*Store)(nil)

// New creates the root directory if needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("blob root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: abs}, nil
}

// path resolves bucket/key and refuses anything outside the root.
func (s *Store) path(bucket, key string) (string, error) {
	if bucket == "" || key == "" || strings.ContainsRune(bucket, filepath.Separator) || bucket == "." || bucket == ".." {
		return "", fmt.Errorf("%w: %q/%q", blob.ErrInvalidKey, bucket, key)
	}
	base := filepath.Join(s.root, bucket)
	p := filepath.Join(base, filepath.FromSlash(key))
	rel, err := filepath.Rel(base, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %q/%q", blob.ErrInvalidKey, bucket, key)
	}
	return p, nil
}

func (s *Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	p, err := s.path(bucket, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", blob.ErrNotFound, bucket, key)
	}
	return data, err
}

// Put writes through a temporary file so readers never see a partial object.
// The content type is not recorded.
func (s *Store) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	p, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	p, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, bucket, key string) (bool, error) {
	p, err := s.path(bucket, key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	}
	return false, err
}
