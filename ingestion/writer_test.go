package ingestion

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/lectern/ai/mock"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/segment"
	"github.com/poiesic/lectern/storage"
	"github.com/poiesic/lectern/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDims = 8

func setupStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := badger.NewMemoryStore(testDims)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func createJob(t *testing.T, store storage.Store, id, owner, text string) *core.Job {
	t.Helper()
	job := core.NewJob(id, owner, id+".pdf", time.Now())
	job.ResultText = text
	require.NoError(t, store.Jobs().CreateJob(context.Background(), job))
	return job
}

func makeSegments(n int) []segment.Segment {
	segs := make([]segment.Segment, n)
	for i := range segs {
		text := fmt.Sprintf("segment number %d", i)
		segs[i] = segment.Segment{Index: i, Text: text, Tokens: 3}
	}
	return segs
}

func TestNewWriter(t *testing.T) {
	store := setupStore(t)

	_, err := NewWriter(nil, mock.NewMockEmbedder(testDims))
	assert.ErrorIs(t, err, ErrChunkRepositoryRequired)

	_, err = NewWriter(store.Chunks(), nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewWriter(store.Chunks(), mock.NewMockEmbedder(testDims), WithBatchSize(0))
	assert.Error(t, err)

	_, err = NewWriter(store.Chunks(), mock.NewMockEmbedder(testDims), WithDimensions(-1))
	assert.Error(t, err)
}

func TestWriterBatchesAndStores(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	job := createJob(t, store, "job-1", "alice", "text")
	embedder := mock.NewMockEmbedder(testDims)

	w, err := NewWriter(store.Chunks(), embedder, WithBatchSize(100), WithDimensions(testDims))
	require.NoError(t, err)

	n, err := w.Write(ctx, job, makeSegments(250))
	require.NoError(t, err)
	assert.Equal(t, 250, n)
	assert.Equal(t, 3, embedder.CallCount())
	assert.Equal(t, 250, embedder.TextCount())

	chunks, err := store.Chunks().GetChunks(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 250)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, "alice", c.OwnerID)
		assert.Equal(t, 3, c.TokenCount)
		assert.Equal(t, mock.Vector(c.Text, testDims), c.Embedding)
	}
}

func TestWriterReplacesPreviousSet(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	job := createJob(t, store, "job-1", "alice", "text")

	w, err := NewWriter(store.Chunks(), mock.NewMockEmbedder(testDims))
	require.NoError(t, err)

	_, err = w.Write(ctx, job, makeSegments(5))
	require.NoError(t, err)
	_, err = w.Write(ctx, job, makeSegments(2))
	require.NoError(t, err)

	count, err := store.Chunks().CountChunks(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestWriterCountMismatchWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	job := createJob(t, store, "job-1", "alice", "text")

	good := mock.NewMockEmbedder(testDims)
	w, err := NewWriter(store.Chunks(), good)
	require.NoError(t, err)
	_, err = w.Write(ctx, job, makeSegments(3))
	require.NoError(t, err)

	short := mock.NewMockEmbedder(testDims)
	short.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{mock.Vector("x", testDims)}, nil
	}
	w, err = NewWriter(store.Chunks(), short, WithBatchSize(2))
	require.NoError(t, err)

	_, err = w.Write(ctx, job, makeSegments(4))
	assert.ErrorIs(t, err, ErrEmbeddingMismatch)

	// The earlier set is still the visible one.
	count, err := store.Chunks().CountChunks(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestWriterDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	job := createJob(t, store, "job-1", "alice", "text")

	w, err := NewWriter(store.Chunks(), mock.NewMockEmbedder(4), WithDimensions(testDims))
	require.NoError(t, err)

	_, err = w.Write(ctx, job, makeSegments(2))
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)

	count, err := store.Chunks().CountChunks(ctx, job.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestWriterEmbedderError(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	job := createJob(t, store, "job-1", "alice", "text")

	boom := errors.New("service unavailable")
	embedder := mock.NewMockEmbedder(testDims)
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, boom
	}
	w, err := NewWriter(store.Chunks(), embedder)
	require.NoError(t, err)

	_, err = w.Write(ctx, job, makeSegments(2))
	assert.ErrorIs(t, err, boom)
}

func TestWriterMissingJob(t *testing.T) {
	store := setupStore(t)
	w, err := NewWriter(store.Chunks(), mock.NewMockEmbedder(testDims))
	require.NoError(t, err)

	job := core.NewJob("ghost", "alice", "ghost.pdf", time.Now())
	_, err = w.Write(context.Background(), job, makeSegments(1))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
