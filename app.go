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



// Package lectern wires the document pipeline together from a config.Config.
//
// An App owns every backend (record store, progress cache, queue, blob
// store and AI provider) and hands out the services built on them: the job
// service used by producers and readers, the retrieval engine, worker
// coordinators and re-ingestion sweeps.
package lectern

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/lectern/admission"
	"github.com/poiesic/lectern/ai"
	"github.com/poiesic/lectern/ai/anthropic"
	"github.com/poiesic/lectern/ai/openai"
	"github.com/poiesic/lectern/awsconf"
	"github.com/poiesic/lectern/blob"
	blobfs "github.com/poiesic/lectern/blob/fs"
	blobs3 "github.com/poiesic/lectern/blob/s3"
	"github.com/poiesic/lectern/config"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/extract"
	"github.com/poiesic/lectern/ingestion"
	"github.com/poiesic/lectern/jobs"
	"github.com/poiesic/lectern/progress"
	progressbadger "github.com/poiesic/lectern/progress/badger"
	progressredis "github.com/poiesic/lectern/progress/redis"
	"github.com/poiesic/lectern/queue"
	queuebadger "github.com/poiesic/lectern/queue/badger"
	queuesqs "github.com/poiesic/lectern/queue/sqs"
	"github.com/poiesic/lectern/reingest"
	"github.com/poiesic/lectern/retrieval"
	"github.com/poiesic/lectern/segment"
	"github.com/poiesic/lectern/storage"
	"github.com/poiesic/lectern/storage/badger"
	"github.com/poiesic/lectern/storage/postgres"
	"github.com/poiesic/lectern/summary"
	"github.com/poiesic/lectern/worker"
)

// MemoryPath as storage.path keeps every badger component in memory.
const MemoryPath = ":memory:"

// preflightText is embedded once at startup to check the vector length.
const preflightText = "dimension check"

type App struct {
	config   *config.Config
	backend  *badger.Backend
	store    storage.Store
	cache    progress.Cache
	tracker  *progress.Tracker
	queue    queue.Queue
	blobs    blob.Store
	provider ai.Provider

	gate       *admission.Gate
	summarizer *summary.Summarizer
	jobs       *jobs.Service
	ingestor   *ingestion.Ingestor
	extractor  extract.Extractor
	retrieval  *retrieval.Engine

	closers []func() error
	logger  *slog.Logger
}

// AppOption configures an App.
type AppOption func(*appOptions)

type appOptions struct {
	provider ai.Provider
	logger   *slog.Logger
}

// WithProvider supplies the AI provider instead of building one from the
// [ai] section. The App takes ownership and closes it.
func WithProvider(p ai.Provider) AppOption {
	return func(o *appOptions) {
		o.provider = p
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) AppOption {
	return func(o *appOptions) {
		o.logger = logger
	}
}

// Open builds an App from cfg. Everything opened before a failure is closed
// again.
func Open(ctx context.Context, cfg *config.Config, opts ...AppOption) (app *App, err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := &appOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	app = &App{config: cfg, logger: options.logger.With("component", "app")}
	defer func() {
		if err != nil {
			app.Close()
			app = nil
		}
	}()

	if err := app.openBackend(); err != nil {
		return nil, err
	}
	if err := app.openStore(ctx, options.logger); err != nil {
		return nil, err
	}
	if err := app.openCache(ctx, options.logger); err != nil {
		return nil, err
	}
	if err := app.openQueue(ctx, options.logger); err != nil {
		return nil, err
	}
	if err := app.openBlobs(ctx); err != nil {
		return nil, err
	}
	if err := app.openProvider(options.provider); err != nil {
		return nil, err
	}
	if err := app.buildServices(options.logger); err != nil {
		return nil, err
	}
	return app, nil
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func (a *App) openBackend() error {
	if !a.config.UsesBadger() {
		return nil
	}
	path := a.config.Storage.Path
	var (
		backend *badger.Backend
		err     error
	)
	if path == MemoryPath {
		backend, err = badger.OpenBackend("", true)
	} else {
		backend, err = badger.OpenBackend(path, false)
	}
	if err != nil {
		return fmt.Errorf("opening badger at %s: %w", path, err)
	}
	a.backend = backend
	a.onClose(backend.Close)
	return nil
}

func (a *App) openStore(ctx context.Context, logger *slog.Logger) error {
	cfg := a.config
	switch cfg.Storage.Backend {
	case "postgres":
		store, err := postgres.Open(ctx, postgres.Config{
			DSN:        cfg.Storage.DSN,
			Dimensions: cfg.AI.Dimensions,
			MaxConns:   cfg.Storage.MaxConns,
		}, logger)
		if err != nil {
			return err
		}
		a.store = store
	default:
		a.store = badger.NewStoreWithBackend(a.backend, cfg.AI.Dimensions)
	}
	a.onClose(a.store.Close)
	return nil
}

func (a *App) openCache(ctx context.Context, logger *slog.Logger) error {
	cfg := a.config.Cache
	var (
		cache progress.Cache
		err   error
	)
	switch cfg.Backend {
	case "redis":
		cache, err = progressredis.Open(ctx, cfg.Addr, cfg.Password, cfg.DB,
			progressredis.WithTTL(cfg.TTL.Duration), progressredis.WithLogger(logger))
	default:
		cache, err = progressbadger.New(a.backend.DB(),
			progressbadger.WithTTL(cfg.TTL.Duration), progressbadger.WithLogger(logger))
	}
	if err != nil {
		return err
	}
	a.cache = cache
	a.onClose(cache.Close)

	a.tracker, err = progress.NewTracker(cache, progress.WithLogger(logger))
	return err
}

func (a *App) awsOptions() awsconf.Options {
	return awsconf.Options{
		Region:          a.config.AWS.Region,
		AccessKeyID:     a.config.AWS.AccessKeyID,
		SecretAccessKey: a.config.AWS.SecretAccessKey,
	}
}

func (a *App) openQueue(ctx context.Context, logger *slog.Logger) error {
	cfg := a.config.Queue
	var (
		q   queue.Queue
		err error
	)
	switch cfg.Backend {
	case "sqs":
		q, err = queuesqs.Open(ctx, a.awsOptions(), cfg.Endpoint, cfg.URL,
			queuesqs.WithVisibilityTimeout(cfg.VisibilityTimeout.Duration), queuesqs.WithLogger(logger))
	default:
		q, err = queuebadger.New(a.backend.DB(), cfg.Name,
			queuebadger.WithVisibilityTimeout(cfg.VisibilityTimeout.Duration),
			queuebadger.WithMaxReceive(cfg.MaxReceive),
			queuebadger.WithLogger(logger))
	}
	if err != nil {
		return err
	}
	a.queue = q
	a.onClose(q.Close)
	return nil
}

func (a *App) openBlobs(ctx context.Context) error {
	cfg := a.config.Blob
	var err error
	switch cfg.Backend {
	case "s3":
		a.blobs, err = blobs3.Open(ctx, a.awsOptions(), cfg.Endpoint)
	default:
		a.blobs, err = blobfs.New(cfg.Root)
	}
	return err
}

func (a *App) openProvider(provider ai.Provider) error {
	if provider == nil {
		aiCfg := a.config.AIConfig()
		if err := aiCfg.Validate(); err != nil {
			return err
		}
		var err error
		switch a.config.AI.Provider {
		case "anthropic":
			var embedder ai.Embedder
			embedder, err = openai.NewEmbedder(aiCfg)
			if err == nil {
				provider, err = anthropic.NewProvider(aiCfg, embedder)
			}
		default:
			provider, err = openai.NewProvider(aiCfg)
		}
		if err != nil {
			return fmt.Errorf("creating AI provider: %w", err)
		}
	}
	a.provider = provider
	a.onClose(provider.Close)
	return nil
}

func (a *App) buildServices(logger *slog.Logger) error {
	cfg := a.config
	aiCfg := cfg.AIConfig()
	var err error

	a.gate, err = admission.NewGate(a.queue,
		admission.WithCeiling(cfg.Admission.Ceiling),
		admission.WithCache(a.cache, cfg.Admission.DepthTTL.Duration),
		admission.WithLogger(logger))
	if err != nil {
		return err
	}

	a.summarizer, err = summary.New(a.provider.Generator(),
		summary.WithModel(aiCfg.SummaryModel),
		summary.WithMaxChars(cfg.Worker.SummaryMaxChars),
		summary.WithLogger(logger))
	if err != nil {
		return err
	}

	jobOpts := []jobs.Option{
		jobs.WithGate(a.gate),
		jobs.WithSummarizer(a.summarizer),
		jobs.WithBucket(cfg.Blob.Bucket),
		jobs.WithMaxBytes(int(cfg.Submit.MaxBytes)),
		jobs.WithRate(cfg.Submit.RateCount, cfg.Submit.RatePeriod.Duration),
		jobs.WithStaleAfter(cfg.Cache.StaleAfter.Duration),
		jobs.WithLogger(logger),
	}
	if cfg.Submit.KnownOwner {
		jobOpts = append(jobOpts, jobs.WithKnownOwners())
	}
	a.jobs, err = jobs.NewService(a.store, a.tracker, a.queue, a.blobs, jobOpts...)
	if err != nil {
		return err
	}

	seg, err := segment.New(cfg.SegmentConfig())
	if err != nil {
		return err
	}
	writer, err := ingestion.NewWriter(a.store.Chunks(), a.provider.Embedder(),
		ingestion.WithBatchSize(cfg.AI.BatchSize),
		ingestion.WithDimensions(cfg.AI.Dimensions),
		ingestion.WithWriterLogger(logger))
	if err != nil {
		return err
	}
	a.ingestor, err = ingestion.NewIngestor(seg, writer, logger)
	if err != nil {
		return err
	}

	a.extractor, err = extract.DefaultChain(extract.WithLogger(logger))
	if err != nil {
		return err
	}

	a.retrieval, err = retrieval.NewEngine(a.store.Chunks(), a.provider.Embedder(),
		retrieval.WithDimensions(cfg.AI.Dimensions),
		retrieval.WithGenerator(a.provider.Generator()),
		retrieval.WithAnswerModel(aiCfg.GenerationModel, retrieval.DefaultAnswerTemperature, retrieval.DefaultAnswerMaxTokens),
		retrieval.WithContextChars(cfg.Retrieval.ContextChars),
		retrieval.WithLogger(logger))
	return err
}

// Preflight embeds a sample text and checks the vector length against the
// configured dimension. A mismatch wraps core.ErrDimensionMismatch.
func (a *App) Preflight(ctx context.Context) error {
	vec, err := a.provider.Embedder().EmbedText(ctx, preflightText)
	if err != nil {
		return fmt.Errorf("embedding preflight: %w", err)
	}
	if len(vec) != a.config.AI.Dimensions {
		return fmt.Errorf("%w: %s returns %d dimensions, configured %d",
			core.ErrDimensionMismatch, a.config.AI.EmbeddingModel, len(vec), a.config.AI.Dimensions)
	}
	return nil
}

// Coordinator builds a worker coordinator on the App's backends.
// opts are applied after the configured defaults.
func (a *App) Coordinator(opts ...worker.Option) (*worker.Coordinator, error) {
	cfg := a.config
	base := []worker.Option{
		worker.WithSummarizer(a.summarizer),
		worker.WithIngester(a.ingestor),
		worker.WithWait(cfg.Queue.Wait.Duration),
		worker.WithVisibilityTimeout(cfg.Queue.VisibilityTimeout.Duration),
		worker.WithMaxFailures(cfg.Worker.MaxFailures),
		worker.WithBackoff(cfg.Worker.BackoffBase.Duration, cfg.Worker.BackoffMax.Duration),
		worker.WithLogger(a.logger),
	}
	return worker.NewCoordinator(a.queue, a.store, a.tracker, a.blobs, a.extractor, append(base, opts...)...)
}

// Reingester builds a re-ingestion sweep. A nil rc uses the defaults with
// the configured pool size.
func (a *App) Reingester(rc *reingest.Config, opts ...reingest.Option) (*reingest.Reingester, error) {
	if rc == nil {
		rc = reingest.DefaultConfig()
		rc.PoolSize = a.config.Worker.ReingestPoolSize
	}
	opts = append([]reingest.Option{reingest.WithLogger(a.logger)}, opts...)
	return reingest.NewReingester(a.store, a.ingestor, rc, opts...)
}

func (a *App) Config() *config.Config       { return a.config }
func (a *App) Jobs() *jobs.Service          { return a.jobs }
func (a *App) Retrieval() *retrieval.Engine { return a.retrieval }
func (a *App) Store() storage.Store         { return a.store }
func (a *App) Tracker() *progress.Tracker   { return a.tracker }
func (a *App) Queue() queue.Queue           { return a.queue }
func (a *App) Blobs() blob.Store            { return a.blobs }

// Close releases everything in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("error closing component", "error", err)
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
