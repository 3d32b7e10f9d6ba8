package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lectern/admission"
	"github.com/poiesic/lectern/ai/mock"
	"github.com/poiesic/lectern/blob"
	blobfs "github.com/poiesic/lectern/blob/fs"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/progress"
	progressbadger "github.com/poiesic/lectern/progress/badger"
	"github.com/poiesic/lectern/queue"
	queuebadger "github.com/poiesic/lectern/queue/badger"
	"github.com/poiesic/lectern/storage"
	storagebadger "github.com/poiesic/lectern/storage/badger"
	"github.com/poiesic/lectern/summary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleText = "Quarterly report.\n\nRevenue grew twelve percent over the previous quarter."

type harness struct {
	store   storage.Store
	tracker *progress.Tracker
	queue   *queuebadger.Queue
	blobs   *recordingBlobs
	clock   *fakeClock
}

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

// recordingBlobs remembers the keys written through it.
type recordingBlobs struct {
	blob.Store
	mu   sync.Mutex
	puts []string
}

func (r *recordingBlobs) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	r.mu.Lock()
	r.puts = append(r.puts, key)
	r.mu.Unlock()
	return r.Store.Put(ctx, bucket, key, data, contentType)
}

func (r *recordingBlobs) lastKey() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.puts[len(r.puts)-1]
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := storagebadger.NewMemoryStore(8)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	cache, err := progressbadger.New(db)
	require.NoError(t, err)
	q, err := queuebadger.New(db, "jobs")
	require.NoError(t, err)
	t.Cleanup(func() {
		q.Close()
		cache.Close()
		db.Close()
	})

	tracker, err := progress.NewTracker(cache)
	require.NoError(t, err)
	fsStore, err := blobfs.New(t.TempDir())
	require.NoError(t, err)

	return &harness{
		store:   store,
		tracker: tracker,
		queue:   q,
		blobs:   &recordingBlobs{Store: fsStore},
		clock:   &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
	}
}

func (h *harness) service(t *testing.T, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(h.clock.Now)}, opts...)
	s, err := NewService(h.store, h.tracker, h.queue, h.blobs, opts...)
	require.NoError(t, err)
	return s
}

func textUpload(owner, name string) Upload {
	return Upload{OwnerID: owner, Filename: name, Data: []byte(sampleText)}
}

// completeJob drives a stored job to COMPLETED with text.
func completeJob(t *testing.T, store storage.Store, id, text string) {
	t.Helper()
	_, err := store.Jobs().UpdateJob(context.Background(), id, func(j *core.Job) error {
		if _, err := j.Start(time.Now()); err != nil {
			return err
		}
		return j.Complete(core.Result{Text: text, PageCount: 1}, time.Now())
	})
	require.NoError(t, err)
}

func TestNewService(t *testing.T) {
	h := newHarness(t)

	_, err := NewService(nil, h.tracker, h.queue, h.blobs)
	assert.ErrorIs(t, err, ErrStoreRequired)
	_, err = NewService(h.store, nil, h.queue, h.blobs)
	assert.ErrorIs(t, err, ErrTrackerRequired)
	_, err = NewService(h.store, h.tracker, nil, h.blobs)
	assert.ErrorIs(t, err, ErrQueueRequired)
	_, err = NewService(h.store, h.tracker, h.queue, nil)
	assert.ErrorIs(t, err, ErrBlobStoreRequired)

	_, err = NewService(h.store, h.tracker, h.queue, h.blobs, WithRate(0, time.Minute))
	assert.Error(t, err)
	_, err = NewService(h.store, h.tracker, h.queue, h.blobs, WithMaxBytes(0))
	assert.Error(t, err)
	_, err = NewService(h.store, h.tracker, h.queue, h.blobs, WithBucket(""))
	assert.Error(t, err)
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := h.service(t, WithBucket("docs"))

	upload := textUpload("alice", "notes.txt")
	upload.Prompt = "  key points  "
	job, err := s.Submit(ctx, upload)
	require.NoError(t, err)

	assert.Equal(t, core.StatusPending, job.Status)
	assert.Equal(t, "docs", job.BlobBucket)
	assert.Equal(t, "uploads/alice/"+job.ID+"/notes.txt", job.BlobKey)
	assert.Equal(t, core.Checksum([]byte(sampleText)), job.Checksum)
	assert.Equal(t, "key points", job.Prompt)
	assert.True(t, strings.HasPrefix(job.ContentType, "text/plain"))
	assert.Equal(t, h.clock.Now(), job.CreatedAt)

	stored, err := h.store.Jobs().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, stored.Status)

	data, err := h.blobs.Get(ctx, "docs", job.BlobKey)
	require.NoError(t, err)
	assert.Equal(t, sampleText, string(data))

	entry, err := h.tracker.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, entry.Status)
	assert.Equal(t, 0, entry.Progress)
	assert.Equal(t, "notes.txt", entry.Filename)

	msg, err := h.queue.Receive(ctx, 0)
	require.NoError(t, err)
	require.NotNil(t, msg)
	env, err := core.DecodeEnvelope(msg.Body)
	require.NoError(t, err)
	assert.Equal(t, job.ID, env.TaskID)
	assert.Equal(t, job.BlobKey, env.BlobKey)
	assert.Equal(t, "key points", env.Prompt)
}

func TestSubmitAcceptsPDF(t *testing.T) {
	h := newHarness(t)
	s := h.service(t)

	pdf := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")
	job, err := s.Submit(context.Background(), Upload{OwnerID: "alice", Filename: "scan.pdf", Data: pdf})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", job.ContentType)
}

func TestSubmitValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := h.service(t, WithMaxBytes(64))

	_, err := s.Submit(ctx, textUpload("", "a.txt"))
	assert.ErrorIs(t, err, ErrOwnerRequired)

	_, err = s.Submit(ctx, Upload{OwnerID: "alice", Filename: "a.txt"})
	assert.ErrorIs(t, err, ErrEmptyUpload)

	_, err = s.Submit(ctx, Upload{OwnerID: "alice", Filename: "a.txt", Data: []byte(strings.Repeat("x", 65))})
	assert.ErrorIs(t, err, ErrTooLarge)

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	_, err = s.Submit(ctx, Upload{OwnerID: "alice", Filename: "a.png", Data: png})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = s.Submit(ctx, Upload{OwnerID: "alice", Filename: "..", Data: []byte("hello")})
	assert.ErrorIs(t, err, ErrInvalidFilename)

	job, err := s.Submit(ctx, Upload{OwnerID: "alice", Filename: "../../etc/passwd", Data: []byte("hello")})
	require.NoError(t, err)
	assert.Equal(t, "passwd", job.Filename)

	depth, err := h.queue.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestSubmitRateLimit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := h.service(t, WithRate(2, time.Minute))

	for range 2 {
		_, err := s.Submit(ctx, textUpload("alice", "a.txt"))
		require.NoError(t, err)
	}
	_, err := s.Submit(ctx, textUpload("alice", "a.txt"))
	assert.ErrorIs(t, err, ErrRateLimited)

	_, err = s.Submit(ctx, textUpload("bob", "b.txt"))
	require.NoError(t, err)

	h.clock.Advance(30 * time.Second)
	_, err = s.Submit(ctx, textUpload("alice", "a.txt"))
	require.NoError(t, err)
}

type fixedDepth int

func (d fixedDepth) Depth(ctx context.Context) (int, error) { return int(d), nil }

func TestSubmitBackpressure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	gate, err := admission.NewGate(fixedDepth(1500))
	require.NoError(t, err)
	s := h.service(t, WithGate(gate))

	_, err = s.Submit(ctx, textUpload("alice", "a.txt"))
	assert.ErrorIs(t, err, admission.ErrCapacity)

	jobs, err := h.store.Jobs().ListJobs(ctx, storage.JobFilter{})
	require.NoError(t, err)
	assert.Empty(t, jobs)
	n, err := h.tracker.Cache().IndexLen(ctx, progress.AllJobs)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// brokenQueue refuses every send.
type brokenQueue struct {
	queue.Queue
}

func (b *brokenQueue) Send(ctx context.Context, env core.Envelope) error {
	return errors.New("queue unavailable")
}

func TestSubmitRollsBackOnEnqueueFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s, err := NewService(h.store, h.tracker, &brokenQueue{Queue: h.queue}, h.blobs)
	require.NoError(t, err)

	_, err = s.Submit(ctx, textUpload("alice", "a.txt"))
	require.Error(t, err)

	jobs, err := h.store.Jobs().ListJobs(ctx, storage.JobFilter{})
	require.NoError(t, err)
	assert.Empty(t, jobs)
	n, err := h.tracker.Cache().IndexLen(ctx, progress.AllJobs)
	require.NoError(t, err)
	assert.Zero(t, n)
	ok, err := h.blobs.Exists(ctx, DefaultBucket, h.blobs.lastKey())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKnownOwners(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := h.service(t, WithKnownOwners())

	_, err := s.Submit(ctx, textUpload("stranger", "a.txt"))
	assert.ErrorIs(t, err, ErrUnknownOwner)

	_, err = s.RegisterUser(ctx, "  ", "")
	assert.ErrorIs(t, err, ErrInvalidUser)

	user, err := s.RegisterUser(ctx, "ada@example.com", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(user.APIKey, "lk_"))

	found, err := s.Authenticate(ctx, user.APIKey)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	_, err = s.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Submit(ctx, textUpload(user.ID, "a.txt"))
	require.NoError(t, err)
}

func TestStatusFallsBackToDurable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := h.service(t)

	job, err := s.Submit(ctx, textUpload("alice", "a.txt"))
	require.NoError(t, err)

	entry, err := s.Status(ctx, "alice", job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, entry.Status)

	completeJob(t, h.store, job.ID, "done")
	require.NoError(t, h.tracker.Cache().Delete(ctx, job.ID))
	entry, err = s.Status(ctx, "alice", job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, entry.Status)
	assert.Equal(t, 100, entry.Progress)

	require.NoError(t, h.tracker.Cache().SetFields(ctx, job.ID, map[string]string{"status": "???"}))
	entry, err = s.Status(ctx, "alice", job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, entry.Status)

	_, err = s.Status(ctx, "alice", "missing")
	assert.ErrorIs(t, err, progress.ErrNotFound)
}

func TestStatusIsScopedToOwner(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := h.service(t)

	job, err := s.Submit(ctx, textUpload("alice", "a.txt"))
	require.NoError(t, err)

	_, err = s.Status(ctx, "mallory", job.ID)
	assert.ErrorIs(t, err, progress.ErrNotFound, "a cached entry is not shown to another owner")
	_, err = s.Status(ctx, "", job.ID)
	assert.ErrorIs(t, err, ErrOwnerRequired)

	require.NoError(t, h.tracker.Cache().Delete(ctx, job.ID))
	_, err = s.Status(ctx, "mallory", job.ID)
	assert.ErrorIs(t, err, progress.ErrNotFound, "nor is the durable row")

	entry, err := s.Status(ctx, "alice", job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, entry.TaskID)
}

func TestStatusRepairsStaleEntry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := h.service(t, WithStaleAfter(time.Minute))

	finished, err := s.Submit(ctx, textUpload("alice", "a.txt"))
	require.NoError(t, err)
	running, err := s.Submit(ctx, textUpload("alice", "b.txt"))
	require.NoError(t, err)

	// The durable row completed but the cache write after it was lost.
	completeJob(t, h.store, finished.ID, "done")
	entry, err := s.Status(ctx, "alice", finished.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, entry.Status, "a fresh entry is trusted")

	_, err = h.store.Jobs().UpdateJob(ctx, running.ID, func(j *core.Job) error {
		_, err := j.Start(h.clock.Now())
		return err
	})
	require.NoError(t, err)
	require.NoError(t, h.tracker.SetStatus(ctx, running.ID, core.StatusProcessing, 40))

	h.clock.Advance(2 * time.Minute)

	entry, err = s.Status(ctx, "alice", finished.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, entry.Status)
	cached, err := h.tracker.Get(ctx, finished.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, cached.Status, "cache entry is rewritten")

	entry, err = s.Status(ctx, "alice", running.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessing, entry.Status)
	assert.Equal(t, 40, entry.Progress, "agreeing entries keep cached progress")

	_, err = NewService(h.store, h.tracker, h.queue, h.blobs, WithStaleAfter(0))
	assert.Error(t, err)
}

func TestResult(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := h.service(t)

	job, err := s.Submit(ctx, textUpload("alice", "a.txt"))
	require.NoError(t, err)

	_, err = s.Result(ctx, "alice", job.ID)
	assert.ErrorIs(t, err, ErrNotCompleted)

	completeJob(t, h.store, job.ID, "extracted body")
	got, err := s.Result(ctx, "alice", job.ID)
	require.NoError(t, err)
	assert.Equal(t, "extracted body", got.ResultText)

	_, err = s.Result(ctx, "mallory", job.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Result(ctx, "", job.ID)
	assert.ErrorIs(t, err, ErrOwnerRequired)

	raw, err := s.Job(ctx, "alice", job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, raw.Status)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := h.service(t)

	var ids []string
	for _, name := range []string{"1.txt", "2.txt", "3.txt", "4.txt", "5.txt"} {
		job, err := s.Submit(ctx, textUpload("alice", name))
		require.NoError(t, err)
		ids = append(ids, job.ID)
		h.clock.Advance(time.Second)
	}

	page, err := s.List(ctx, "alice", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, ids[4], page.Entries[0].TaskID)
	assert.Equal(t, ids[3], page.Entries[1].TaskID)

	page, err = s.List(ctx, "alice", 3, 2)
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, ids[0], page.Entries[0].TaskID)

	page, err = s.List(ctx, "alice", 4, 2)
	require.NoError(t, err)
	assert.Empty(t, page.Entries)

	// An expired hash is filled in from the durable store.
	completeJob(t, h.store, ids[4], "text")
	require.NoError(t, h.tracker.Cache().Delete(ctx, ids[4]))
	page, err = s.List(ctx, "alice", 1, 1)
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, core.StatusCompleted, page.Entries[0].Status)

	// Live progress shows while cache and row agree on the state.
	require.NoError(t, h.tracker.Cache().SetFields(ctx, ids[3], map[string]string{"progress": "30"}))
	page, err = s.List(ctx, "alice", 2, 1)
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, 30, page.Entries[0].Progress)

	_, err = s.List(ctx, "alice", 0, 10)
	assert.ErrorIs(t, err, ErrInvalidPage)
	_, err = s.List(ctx, "alice", 1, 101)
	assert.ErrorIs(t, err, ErrInvalidPage)
	_, err = s.List(ctx, "", 1, 10)
	assert.ErrorIs(t, err, ErrOwnerRequired)
}

func TestListIsScopedToOwner(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := h.service(t)

	for _, owner := range []string{"alice", "bob", "alice"} {
		_, err := s.Submit(ctx, textUpload(owner, owner+".txt"))
		require.NoError(t, err)
		h.clock.Advance(time.Second)
	}

	page, err := s.List(ctx, "bob", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "bob", page.Entries[0].OwnerID)

	page, err = s.List(ctx, "alice", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	for _, entry := range page.Entries {
		assert.Equal(t, "alice", entry.OwnerID)
	}

	page, err = s.List(ctx, "mallory", 1, 10)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, page.Entries)
}

func TestDocuments(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := h.service(t)

	a, err := s.Submit(ctx, textUpload("alice", "a.txt"))
	require.NoError(t, err)
	h.clock.Advance(time.Second)
	_, err = s.Submit(ctx, textUpload("alice", "b.txt"))
	require.NoError(t, err)
	_, err = s.Submit(ctx, textUpload("bob", "c.txt"))
	require.NoError(t, err)
	completeJob(t, h.store, a.ID, "text")

	docs, err := s.Documents(ctx, "alice", "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = s.Documents(ctx, "alice", core.StatusCompleted, 0, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, a.ID, docs[0].ID)

	_, err = s.Documents(ctx, "", "", 0, 0)
	assert.ErrorIs(t, err, ErrOwnerRequired)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := h.service(t)

	job, err := s.Submit(ctx, textUpload("alice", "a.txt"))
	require.NoError(t, err)
	completeJob(t, h.store, job.ID, "text")
	require.NoError(t, h.store.Chunks().ReplaceChunks(ctx, job.ID, []*core.Chunk{{
		JobID: job.ID, OwnerID: "alice", Index: 0, Text: "text",
		Embedding: mock.Vector("text", 8), TokenCount: 1,
	}}))

	assert.ErrorIs(t, s.Delete(ctx, "mallory", job.ID), ErrNotFound)

	require.NoError(t, s.Delete(ctx, "alice", job.ID))

	_, err = h.store.Jobs().GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	n, err := h.store.Chunks().CountChunks(ctx, job.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = h.tracker.Get(ctx, job.ID)
	assert.ErrorIs(t, err, progress.ErrNotFound)
	total, err := h.tracker.Tracked(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)
	ok, err := h.blobs.Exists(ctx, job.BlobBucket, job.BlobKey)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, s.Delete(ctx, "alice", job.ID), ErrNotFound)
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	plain := h.service(t)
	_, err := plain.Summarize(ctx, "alice", "x", "p")
	assert.ErrorIs(t, err, ErrSummarizerRequired)

	gen := mock.NewMockGenerator("Revenue up 12%.")
	summarizer, err := summary.New(gen)
	require.NoError(t, err)
	s := h.service(t, WithSummarizer(summarizer))

	job, err := s.Submit(ctx, textUpload("alice", "a.txt"))
	require.NoError(t, err)

	_, err = s.Summarize(ctx, "alice", job.ID, "key figures")
	assert.ErrorIs(t, err, ErrNotCompleted)
	_, err = s.Summarize(ctx, "alice", job.ID, " ")
	assert.ErrorIs(t, err, summary.ErrNothingToSummarize)

	completeJob(t, h.store, job.ID, sampleText)
	updated, err := s.Summarize(ctx, "alice", job.ID, "key figures")
	require.NoError(t, err)
	assert.Equal(t, "Revenue up 12%.", updated.Summary)
	assert.Equal(t, "key figures", updated.Prompt)

	stored, err := h.store.Jobs().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Revenue up 12%.", stored.Summary)
	assert.Equal(t, sampleText, stored.ResultText)
	assert.Equal(t, 1, gen.CallCount())
}

func TestHealth(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	s := h.service(t)

	for range 3 {
		_, err := s.Submit(ctx, textUpload("alice", "a.txt"))
		require.NoError(t, err)
	}
	health := s.Health(ctx)
	assert.True(t, health.CacheOK)
	assert.Equal(t, 3, health.Tracked)
	assert.Equal(t, 3, health.QueueDepth)
	assert.Equal(t, admission.DefaultCeiling, health.Ceiling)

	gate, err := admission.NewGate(fixedDepth(7), admission.WithCeiling(10))
	require.NoError(t, err)
	health = h.service(t, WithGate(gate)).Health(ctx)
	assert.Equal(t, 7, health.QueueDepth)
	assert.Equal(t, 10, health.Ceiling)
}
