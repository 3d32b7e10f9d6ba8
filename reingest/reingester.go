// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.



package reingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/ingestion"
	"github.com/poiesic/lectern/storage"
)

// Config holds configuration for a re-ingestion sweep.
type Config struct {
	// OwnerID limits the sweep to one owner. Empty means every owner.
	OwnerID string

	// Force re-ingests jobs that already have chunks.
	Force bool

	// BatchSize is the number of jobs fetched per page
	BatchSize int

	// PoolSize is the number of jobs ingested concurrently
	PoolSize int

	// ReportInterval is how often to report progress (number of jobs)
	ReportInterval int

	// MaxRetries is the maximum number of attempts per job
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		PoolSize:       2,
		ReportInterval: 10,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Stats summarizes one sweep.
type Stats struct {
	Scanned    int
	Skipped    int
	Reingested int
	Failed     int
	Chunks     int
	Duration   time.Duration
}

// Reingester rebuilds chunk sets for completed jobs.
type Reingester struct {
	store    storage.Store
	ingester ingestion.Ingester
	config   *Config
	progress io.Writer
	logger   *slog.Logger
}

// Option configures a Reingester.
type Option func(*Reingester) error

// WithProgress sets where the progress line is written. Default discards it.
func WithProgress(w io.Writer) Option {
	return func(r *Reingester) error {
		if w == nil {
			w = io.Discard
		}
		r.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reingester) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewReingester creates a Reingester. A nil config uses DefaultConfig.
func NewReingester(store storage.Store, ingester ingestion.Ingester, config *Config, opts ...Option) (*Reingester, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if ingester == nil {
		return nil, ErrIngesterRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxRetries <= 0 {
		return nil, ErrInvalidMaxAttempts
	}

	r := &Reingester{
		store:    store,
		ingester: ingester,
		config:   config,
		progress: io.Discard,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "reingest")
	return r, nil
}

// Run performs one sweep. A dimension mismatch aborts the sweep since every
// remaining job would fail the same way; other per-job failures are counted
// and logged.
func (r *Reingester) Run(ctx context.Context) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}

	candidates, err := r.candidates(ctx, stats)
	if err != nil {
		return stats, fmt.Errorf("failed to list jobs: %w", err)
	}
	if len(candidates) == 0 {
		fmt.Fprintf(r.progress, "No completed jobs need re-ingestion (%d scanned)\n", stats.Scanned)
		stats.Duration = time.Since(start)
		return stats, nil
	}

	fmt.Fprintf(r.progress, "Re-ingesting %d jobs (%d skipped, pool size: %d)\n",
		len(candidates), stats.Skipped, r.config.PoolSize)

	pipeline, err := ingestion.NewPipeline(
		&retrying{ingester: r.ingester, attempts: r.config.MaxRetries, delay: r.config.RetryDelay},
		ingestion.WithPoolSize(r.config.PoolSize),
		ingestion.WithLogger(r.logger),
	)
	if err != nil {
		return stats, err
	}
	defer pipeline.Release()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	tracker := NewProgressTracker(r.progress, len(candidates), r.config.ReportInterval)
	tracker.Start()

	var (
		mu    sync.Mutex
		fatal error
	)
	record := func(o ingestion.Outcome) {
		mu.Lock()
		defer mu.Unlock()
		if o.Err != nil {
			stats.Failed++
			tracker.Add(1, 1)
			r.logger.Warn("re-ingestion failed", "job_id", o.JobID, "error", o.Err)
			if errors.Is(o.Err, core.ErrDimensionMismatch) && fatal == nil {
				fatal = o.Err
				cancel()
			}
			return
		}
		stats.Reingested++
		stats.Chunks += o.Chunks
		tracker.Add(1, 0)
	}

	for _, job := range candidates {
		if runCtx.Err() != nil {
			break
		}
		if err := pipeline.Submit(runCtx, job, record); err != nil {
			cancel()
			pipeline.Wait()
			return stats, err
		}
	}
	pipeline.Wait()
	tracker.Finish()
	stats.Duration = time.Since(start)

	if fatal != nil {
		return stats, fmt.Errorf("re-ingestion aborted: %w", fatal)
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	r.logger.Info("re-ingestion finished",
		"reingested", stats.Reingested,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
		"chunks", stats.Chunks,
		"duration", stats.Duration)
	return stats, nil
}

// candidates returns the completed jobs that need ingestion.
func (r *Reingester) candidates(ctx context.Context, stats *Stats) ([]*core.Job, error) {
	var out []*core.Job
	seen := make(map[string]bool)
	iter := NewJobIterator(r.store.Jobs(), r.config.OwnerID, r.config.BatchSize)
	err := iter.ForEach(ctx, func(jobs []*core.Job) error {
		for _, job := range jobs {
			if seen[job.ID] {
				continue
			}
			seen[job.ID] = true
			stats.Scanned++

			if strings.TrimSpace(job.ResultText) == "" {
				stats.Skipped++
				continue
			}
			if !r.config.Force {
				n, err := r.store.Chunks().CountChunks(ctx, job.ID)
				if err != nil {
					return err
				}
				if n > 0 {
					stats.Skipped++
					continue
				}
			}
			out = append(out, job)
		}
		return nil
	})
	return out, err
}
