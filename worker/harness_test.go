package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lectern/ai/mock"
	blobfs "github.com/poiesic/lectern/blob/fs"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/extract"
	"github.com/poiesic/lectern/ingestion"
	"github.com/poiesic/lectern/progress"
	progressbadger "github.com/poiesic/lectern/progress/badger"
	"github.com/poiesic/lectern/queue"
	queuebadger "github.com/poiesic/lectern/queue/badger"
	"github.com/poiesic/lectern/segment"
	"github.com/poiesic/lectern/storage"
	storagebadger "github.com/poiesic/lectern/storage/badger"
	"github.com/stretchr/testify/require"
)

const (
	testDims   = 8
	testBucket = "lectern"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	store   storage.Store
	tracker *progress.Tracker
	queue   *queuebadger.Queue
	blobs   *blobfs.Store
	clock   *fakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := storagebadger.NewMemoryStore(testDims)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	clock := &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}

	cache, err := progressbadger.New(db)
	require.NoError(t, err)
	q, err := queuebadger.New(db, "jobs", queuebadger.WithClock(clock.Now), queuebadger.WithVisibilityTimeout(time.Minute))
	require.NoError(t, err)
	t.Cleanup(func() {
		q.Close()
		cache.Close()
		db.Close()
	})

	tracker, err := progress.NewTracker(cache)
	require.NoError(t, err)
	blobs, err := blobfs.New(t.TempDir())
	require.NoError(t, err)

	return &harness{store: store, tracker: tracker, queue: q, blobs: blobs, clock: clock}
}

// submit stores a text upload the way the job service does and enqueues it.
func (h *harness) submit(t *testing.T, id, owner, text, prompt string) *core.Job {
	t.Helper()
	ctx := context.Background()
	job := core.NewJob(id, owner, "report.md", h.clock.Now())
	job.BlobBucket = testBucket
	job.BlobKey = fmt.Sprintf("uploads/%s/%s/report.md", owner, id)
	job.Prompt = prompt

	require.NoError(t, h.blobs.Put(ctx, testBucket, job.BlobKey, []byte(text), "text/markdown"))
	require.NoError(t, h.store.Jobs().CreateJob(ctx, job))
	require.NoError(t, h.tracker.Register(ctx, progress.EntryFromJob(job)))
	require.NoError(t, h.queue.Send(ctx, core.EnvelopeFor(job)))
	return job
}

func (h *harness) coordinator(t *testing.T, extractor extract.Extractor, opts ...Option) *Coordinator {
	t.Helper()
	if extractor == nil {
		chain, err := extract.DefaultChain()
		require.NoError(t, err)
		extractor = chain
	}
	opts = append([]Option{WithClock(h.clock.Now), WithVisibilityTimeout(time.Minute), WithWait(0)}, opts...)
	c, err := NewCoordinator(h.queue, h.store, h.tracker, h.blobs, extractor, opts...)
	require.NoError(t, err)
	return c
}

func (h *harness) ingestor(t *testing.T) ingestion.Ingester {
	t.Helper()
	writer, err := ingestion.NewWriter(h.store.Chunks(), mock.NewMockEmbedder(testDims), ingestion.WithDimensions(testDims))
	require.NoError(t, err)
	seg, err := segment.New(segment.DefaultConfig())
	require.NoError(t, err)
	ing, err := ingestion.NewIngestor(seg, writer, nil)
	require.NoError(t, err)
	return ing
}

func (h *harness) receive(t *testing.T) *queue.Message {
	t.Helper()
	msg, err := h.queue.Receive(context.Background(), 0)
	require.NoError(t, err)
	require.NotNil(t, msg)
	return msg
}

func (h *harness) job(t *testing.T, id string) *core.Job {
	t.Helper()
	job, err := h.store.Jobs().GetJob(context.Background(), id)
	require.NoError(t, err)
	return job
}

func (h *harness) entry(t *testing.T, id string) *progress.Entry {
	t.Helper()
	entry, err := h.tracker.Get(context.Background(), id)
	require.NoError(t, err)
	return entry
}

// flakyExtractor fails its first failures calls.
type flakyExtractor struct {
	failures int
	calls    atomic.Int64
}

func (f *flakyExtractor) Name() string { return "flaky" }

func (f *flakyExtractor) Extract(ctx context.Context, data []byte) (*extract.Result, error) {
	n := f.calls.Add(1)
	if int(n) <= f.failures {
		return nil, errors.New("corrupt xref table")
	}
	return &extract.Result{Text: strings.TrimSpace(string(data)), Pages: 2, Extractor: "flaky"}, nil
}

// stubIngester returns err and counts calls.
type stubIngester struct {
	err   error
	calls atomic.Int64
}

func (s *stubIngester) Ingest(ctx context.Context, job *core.Job) (int, error) {
	s.calls.Add(1)
	if s.err != nil {
		return 0, s.err
	}
	return 1, nil
}

// brokenQueue fails every receive.
type brokenQueue struct {
	queue.Queue
	receives atomic.Int64
}

func (b *brokenQueue) Receive(ctx context.Context, wait time.Duration) (*queue.Message, error) {
	b.receives.Add(1)
	return nil, errors.New("connection refused")
}
