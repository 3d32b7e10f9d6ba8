package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/lectern/blob"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/extract"
	"github.com/poiesic/lectern/ingestion"
	"github.com/poiesic/lectern/progress"
	"github.com/poiesic/lectern/queue"
	"github.com/poiesic/lectern/storage"
	"github.com/poiesic/lectern/summary"
)

const (
	// DefaultMaxFailures is the consecutive failure ceiling.
	DefaultMaxFailures = 5

	// DefaultBackoffBase is the first backoff delay after a failure.
	DefaultBackoffBase = 5 * time.Second

	// DefaultBackoffMax caps the backoff delay.
	DefaultBackoffMax = 2 * time.Minute
)

var (
	// ErrQueueRequired is returned when no queue is provided.
	ErrQueueRequired = errors.New("queue required")

	// ErrStoreRequired is returned when no durable store is provided.
	ErrStoreRequired = errors.New("durable store required")

	// ErrTrackerRequired is returned when no progress tracker is provided.
	ErrTrackerRequired = errors.New("progress tracker required")

	// ErrBlobStoreRequired is returned when no blob store is provided.
	ErrBlobStoreRequired = errors.New("blob store required")

	// ErrExtractorRequired is returned when no extractor is provided.
	ErrExtractorRequired = errors.New("extractor required")
)

// Coordinator claims envelopes from a queue and processes their jobs.
// One Coordinator handles one claim at a time.
type Coordinator struct {
	queue      queue.Queue
	store      storage.Store
	tracker    *progress.Tracker
	blobs      blob.Store
	extractor  extract.Extractor
	summarizer *summary.Summarizer
	ingester   ingestion.Ingester

	wait        time.Duration
	visibility  time.Duration
	maxFailures int
	backoffBase time.Duration
	backoffMax  time.Duration

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	logger *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator) error

// WithSummarizer enables summaries for envelopes that carry a prompt.
func WithSummarizer(summarizer *summary.Summarizer) Option {
	return func(c *Coordinator) error {
		c.summarizer = summarizer
		return nil
	}
}

// WithIngester enables chunking and embedding of completed jobs.
func WithIngester(ingester ingestion.Ingester) Option {
	return func(c *Coordinator) error {
		c.ingester = ingester
		return nil
	}
}

// WithWait sets the long-poll wait of each receive.
func WithWait(d time.Duration) Option {
	return func(c *Coordinator) error {
		if d < 0 || d > queue.DefaultWait {
			return fmt.Errorf("wait must be between 0 and %s, got %s", queue.DefaultWait, d)
		}
		c.wait = d
		return nil
	}
}

// WithVisibilityTimeout sets the lease length. It bounds how long one claim
// may run and paces the heartbeat.
func WithVisibilityTimeout(d time.Duration) Option {
	return func(c *Coordinator) error {
		if d <= 0 {
			return fmt.Errorf("visibility timeout must be positive, got %s", d)
		}
		c.visibility = d
		return nil
	}
}

// WithMaxFailures sets the consecutive failure ceiling.
func WithMaxFailures(n int) Option {
	return func(c *Coordinator) error {
		if n <= 0 {
			return fmt.Errorf("max failures must be positive, got %d", n)
		}
		c.maxFailures = n
		return nil
	}
}

// WithBackoff sets the exponential backoff after failures.
func WithBackoff(base, max time.Duration) Option {
	return func(c *Coordinator) error {
		if base <= 0 || max < base {
			return fmt.Errorf("invalid backoff %s..%s", base, max)
		}
		c.backoffBase = base
		c.backoffMax = max
		return nil
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) error {
		c.now = now
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(q queue.Queue, store storage.Store, tracker *progress.Tracker, blobs blob.Store, extractor extract.Extractor, opts ...Option) (*Coordinator, error) {
	switch {
	case q == nil:
		return nil, ErrQueueRequired
	case store == nil:
		return nil, ErrStoreRequired
	case tracker == nil:
		return nil, ErrTrackerRequired
	case blobs == nil:
		return nil, ErrBlobStoreRequired
	case extractor == nil:
		return nil, ErrExtractorRequired
	}

	c := &Coordinator{
		queue:       q,
		store:       store,
		tracker:     tracker,
		blobs:       blobs,
		extractor:   extractor,
		wait:        queue.DefaultWait,
		visibility:  queue.DefaultVisibilityTimeout,
		maxFailures: DefaultMaxFailures,
		backoffBase: DefaultBackoffBase,
		backoffMax:  DefaultBackoffMax,
		now:         time.Now,
		sleep:       sleepContext,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "coordinator")
	return c, nil
}

// Run receives and processes envelopes until ctx is cancelled, a
// configuration error occurs, or the consecutive failure ceiling is reached.
// Cancellation stops new receives; a claim already in flight runs to a
// terminal state on a context detached from ctx. Run returns nil after
// cancellation.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info("coordinator started", "wait", c.wait, "visibility", c.visibility)
	defer c.logger.Info("coordinator stopped")

	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		msg, err := c.queue.Receive(ctx, c.wait)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			err = stageError(KindTransient, "receive", err)
		} else if msg == nil {
			failures = 0
			continue
		} else {
			err = c.Handle(ctx, msg)
		}

		if err == nil {
			failures = 0
			continue
		}
		switch KindOf(err) {
		case KindConfig:
			c.logger.Error("configuration error, stopping", "error", err)
			return err
		case KindTransient:
			failures++
			c.logger.Error("transient failure", "error", err, "consecutive", failures, "ceiling", c.maxFailures)
			if failures >= c.maxFailures {
				return fmt.Errorf("%w: %w", ErrTooManyFailures, err)
			}
			if c.sleep(ctx, c.backoff(failures)) != nil {
				return nil
			}
		default:
			failures = 0
		}
	}
}

// Handle processes one delivered message and applies the acknowledgment
// decision. The returned error is nil or a *StageError.
func (c *Coordinator) Handle(ctx context.Context, msg *queue.Message) error {
	env, err := core.DecodeEnvelope(msg.Body)
	if err != nil {
		c.logger.Error("dropping malformed envelope", "message_id", msg.ID, "error", err)
		return c.ack(ctx, msg, "")
	}

	logger := c.logger.With("job_id", env.TaskID, "receive_count", msg.ReceiveCount)
	logger.Info("claimed envelope", "filename", env.Filename)

	procCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.visibility)
	defer cancel()
	stop := c.heartbeat(procCtx, msg.Receipt, logger)
	defer stop()

	err = c.Process(procCtx, env)
	var se *StageError
	if err != nil && !errors.As(err, &se) {
		se = stageError(KindTransient, "process", err)
	}

	switch {
	case se == nil:
		return c.ack(procCtx, msg, env.TaskID)
	case errors.Is(se, errDropped):
		logger.Warn("dropping envelope", "error", se.Err)
		return c.ack(procCtx, msg, env.TaskID)
	case se.Kind == KindDegraded:
		logger.Warn("ingestion degraded, job stays completed", "stage", se.Stage, "error", se.Err)
		return c.ack(procCtx, msg, env.TaskID)
	case se.Kind == KindConfig:
		if ackErr := c.ack(procCtx, msg, env.TaskID); ackErr != nil {
			logger.Error("ack failed", "error", ackErr)
		}
		return se
	case se.Kind == KindJobFatal:
		logger.Error("job failed, leaving envelope for redelivery", "stage", se.Stage, "error", se.Err)
		return se
	default:
		return se
	}
}

func (c *Coordinator) ack(ctx context.Context, msg *queue.Message, jobID string) error {
	if err := c.queue.Ack(ctx, msg.Receipt); err != nil {
		return stageError(KindTransient, "ack", err)
	}
	c.logger.Debug("envelope acknowledged", "job_id", jobID, "message_id", msg.ID)
	return nil
}

func (c *Coordinator) backoff(failures int) time.Duration {
	d := c.backoffBase
	for i := 1; i < failures && d < c.backoffMax; i++ {
		d *= 2
	}
	return min(d, c.backoffMax)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
