package reingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	// DefaultSchedule runs a sweep every six hours. Schedules have a
	// leading seconds field.
	DefaultSchedule = "0 0 */6 * * *"

	// DefaultRunTimeout bounds one scheduled sweep.
	DefaultRunTimeout = 30 * time.Minute
)

// Scheduler runs re-ingestion sweeps on a cron schedule.
type Scheduler struct {
	reingester *Reingester
	cron       *cron.Cron
	timeout    time.Duration
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithRunTimeout bounds each sweep.
func WithRunTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSchedulerLogger sets a custom logger.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScheduler creates a scheduler for r. Overlapping runs are skipped.
func NewScheduler(r *Reingester, opts ...SchedulerOption) (*Scheduler, error) {
	if r == nil {
		return nil, ErrReingesterRequired
	}
	s := &Scheduler{
		reingester: r,
		timeout:    DefaultRunTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "reingest-scheduler")

	cl := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return s, nil
}

// Start schedules sweeps and starts the cron runner.
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("re-ingestion scheduler started", "schedule", schedule)
	return nil
}

// Stop stops scheduling and waits for running sweeps.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("re-ingestion scheduler stopped")
}

// RunNow triggers an immediate sweep in the background.
func (s *Scheduler) RunNow() {
	s.logger.Info("triggering immediate re-ingestion")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run()
	}()
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	stats, err := s.reingester.Run(ctx)
	if err != nil {
		s.logger.Error("scheduled re-ingestion failed", "error", err)
		return
	}
	s.logger.Info("scheduled re-ingestion completed",
		"scanned", stats.Scanned,
		"reingested", stats.Reingested,
		"failed", stats.Failed,
		"duration", stats.Duration)
}

// cronLogger routes cron's logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
