package ingestion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/lectern/ai/mock"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupIngestor(t *testing.T) (*Ingestor, *mock.MockEmbedder, func(id, owner, text string) *core.Job) {
	t.Helper()
	store := setupStore(t)
	embedder := mock.NewMockEmbedder(testDims)
	writer, err := NewWriter(store.Chunks(), embedder, WithDimensions(testDims))
	require.NoError(t, err)
	seg, err := segment.New(segment.DefaultConfig())
	require.NoError(t, err)
	ing, err := NewIngestor(seg, writer, nil)
	require.NoError(t, err)

	create := func(id, owner, text string) *core.Job {
		return createJob(t, store, id, owner, text)
	}
	return ing, embedder, create
}

func TestIngestor(t *testing.T) {
	ctx := context.Background()
	ing, embedder, create := setupIngestor(t)

	job := create("job-1", "alice", "# One\n\nFirst section.\n\n# Two\n\nSecond section.\n\n# Three\n\nThird.")
	n, err := ing.Ingest(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, embedder.TextCount())

	_, err = ing.Ingest(ctx, create("job-2", "alice", "   "))
	assert.ErrorIs(t, err, ErrNoText)
}

func TestNewIngestorRequiresParts(t *testing.T) {
	seg, err := segment.New(segment.DefaultConfig())
	require.NoError(t, err)

	_, err = NewIngestor(nil, &Writer{}, nil)
	assert.ErrorIs(t, err, ErrSegmenterRequired)

	_, err = NewIngestor(seg, nil, nil)
	assert.ErrorIs(t, err, ErrWriterRequired)
}

type countingIngester struct {
	calls atomic.Int64
	fail  string
}

func (c *countingIngester) Ingest(ctx context.Context, job *core.Job) (int, error) {
	c.calls.Add(1)
	if job.ID == c.fail {
		return 0, errors.New("embedding service down")
	}
	return len(strings.Fields(job.ResultText)), nil
}

func TestPipelineRunsAllJobs(t *testing.T) {
	ing := &countingIngester{fail: "job-3"}
	p, err := NewPipeline(ing, WithPoolSize(3))
	require.NoError(t, err)
	defer p.Release()

	var (
		mu       sync.Mutex
		outcomes = map[string]Outcome{}
	)
	for _, id := range []string{"job-1", "job-2", "job-3", "job-4", "job-5"} {
		job := core.NewJob(id, "alice", id, time.Now())
		job.ResultText = "a b c"
		require.NoError(t, p.Submit(context.Background(), job, func(o Outcome) {
			mu.Lock()
			outcomes[o.JobID] = o
			mu.Unlock()
		}))
	}
	p.Wait()

	assert.Equal(t, int64(5), ing.calls.Load())
	require.Len(t, outcomes, 5)
	assert.Equal(t, 3, outcomes["job-1"].Chunks)
	assert.NoError(t, outcomes["job-1"].Err)
	assert.Error(t, outcomes["job-3"].Err)
}

func TestPipelineRunsRealIngestor(t *testing.T) {
	ing, _, create := setupIngestor(t)
	p, err := NewPipeline(ing, WithPoolSize(2))
	require.NoError(t, err)
	defer p.Release()

	var total atomic.Int64
	for _, id := range []string{"a", "b"} {
		job := create(id, "alice", "Some text for "+id+".")
		require.NoError(t, p.Submit(context.Background(), job, func(o Outcome) {
			total.Add(int64(o.Chunks))
		}))
	}
	p.Wait()
	assert.Equal(t, int64(2), total.Load())
}

func TestPipelineRelease(t *testing.T) {
	_, err := NewPipeline(nil)
	assert.ErrorIs(t, err, ErrIngesterRequired)

	p, err := NewPipeline(&countingIngester{})
	require.NoError(t, err)
	p.Release()
	p.Release()

	err = p.Submit(context.Background(), core.NewJob("x", "alice", "x", time.Now()), nil)
	assert.ErrorIs(t, err, ErrPipelineReleased)
}
