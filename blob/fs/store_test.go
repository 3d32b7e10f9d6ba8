package fs

import (
	"context"
	"testing"

	"github.com/poiesic/lectern/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := New(t.TempDir())
	require.NoError(t, err)

	ok, err := store.Exists(ctx, "docs", "uploads/u1/42/a.pdf")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "docs", "uploads/u1/42/a.pdf", []byte("%PDF-1.4"), ""))
	ok, err = store.Exists(ctx, "docs", "uploads/u1/42/a.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := store.Get(ctx, "docs", "uploads/u1/42/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	require.NoError(t, store.Delete(ctx, "docs", "uploads/u1/42/a.pdf"))
	require.NoError(t, store.Delete(ctx, "docs", "uploads/u1/42/a.pdf"))
	_, err = store.Get(ctx, "docs", "uploads/u1/42/a.pdf")
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestStore_RejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	store, err := New(t.TempDir())
	require.NoError(t, err)

	for _, tc := range []struct{ bucket, key string }{
		{"docs", "../other/file"},
		{"docs", ""},
		{"", "file"},
		{"..", "file"},
		{"a/b", "file"},
		{"docs", "."},
	} {
		err := store.Put(ctx, tc.bucket, tc.key, []byte("x"), "")
		assert.ErrorIs(t, err, blob.ErrInvalidKey, "%s/%s", tc.bucket, tc.key)
	}
}
