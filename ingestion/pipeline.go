package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/lectern/core"
)

// ErrPipelineReleased is returned by Submit after Release.
var ErrPipelineReleased = errors.New("pipeline released")

// Outcome reports the result of one asynchronous ingestion.
type Outcome struct {
	JobID  string
	Chunks int
	Err    error
}

// Pipeline runs ingestions concurrently on a worker pool.
// It is used for batch re-ingestion; the worker ingests inline.
type Pipeline struct {
	ingester Ingester
	pool     *ants.Pool
	wg       sync.WaitGroup
	mu       sync.Mutex
	released bool
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "ingestion-pipeline")
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(ingester Ingester, opts ...Option) (*Pipeline, error) {
	if ingester == nil {
		return nil, ErrIngesterRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		ingester: ingester,
		pool:     pool,
		logger:   slog.Default().With("component", "ingestion-pipeline"),
	}
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	return p, nil
}

// Submit queues job for ingestion. done, when non-nil, is called from the
// pool goroutine once the ingestion finishes. Submit blocks while every
// pool worker is busy.
func (p *Pipeline) Submit(ctx context.Context, job *core.Job, done func(Outcome)) error {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return ErrPipelineReleased
	}
	p.wg.Add(1)
	p.mu.Unlock()

	job = job.Clone()
	err := p.pool.Submit(func() {
		defer p.wg.Done()
		n, err := p.ingester.Ingest(ctx, job)
		if err != nil {
			p.logger.Error("ingestion failed", "job_id", job.ID, "error", err)
		} else {
			p.logger.Debug("ingestion finished", "job_id", job.ID, "chunks", n)
		}
		if done != nil {
			done(Outcome{JobID: job.ID, Chunks: n, Err: err})
		}
	})
	if err != nil {
		p.wg.Done()
		return err
	}
	return nil
}

// Wait blocks until every submitted ingestion has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Release waits for in-flight work and releases the pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return
	}
	p.released = true
	p.mu.Unlock()

	p.wg.Wait()
	if p.pool != nil {
		p.pool.Release()
	}
}
