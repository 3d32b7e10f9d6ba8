package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/lectern"
	"github.com/poiesic/lectern/config"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/jobs"
	"github.com/poiesic/lectern/reingest"
	"github.com/poiesic/lectern/retrieval"
	"github.com/poiesic/lectern/worker"
	"github.com/urfave/cli/v2"
)

const defaultRetryDelay = time.Second

// withApp opens the application for the duration of fn.
func withApp(c *cli.Context, fn func(ctx context.Context, app *lectern.App) error) error {
	cfg, ok := c.App.Metadata[configKey].(*config.Config)
	if !ok {
		return errors.New("configuration not loaded")
	}
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := lectern.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open lectern: %w", err)
	}
	defer app.Close()

	return fn(ctx, app)
}

// resolveOwner prefers an explicit owner and falls back to the API key.
func resolveOwner(ctx context.Context, c *cli.Context, app *lectern.App) (string, error) {
	if owner := strings.TrimSpace(c.String("owner")); owner != "" {
		return owner, nil
	}
	key := c.String("api-key")
	if key == "" {
		return "", errors.New("either --owner or --api-key is required")
	}
	user, err := app.Jobs().Authenticate(ctx, key)
	if err != nil {
		return "", fmt.Errorf("invalid API key: %w", err)
	}
	return user.ID, nil
}

func requireArg(c *cli.Context, name string) (string, error) {
	arg := strings.TrimSpace(c.Args().First())
	if arg == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return arg, nil
}

// errNoSchedule is returned when a scheduled sweep is requested without
// worker.reingest_schedule.
var errNoSchedule = errors.New("worker.reingest_schedule is not set")

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	base := c.Context
	if base == nil {
		base = context.Background()
	}
	return signal.NotifyContext(base, os.Interrupt, syscall.SIGTERM)
}

// startSweep runs the scheduled re-ingestion sweep until the returned stop
// function is called.
func startSweep(app *lectern.App) (func(), error) {
	schedule := app.Config().Worker.ReingestSchedule
	if schedule == "" {
		return nil, errNoSchedule
	}
	reingester, err := app.Reingester(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create reingester: %w", err)
	}
	scheduler, err := reingest.NewScheduler(reingester)
	if err != nil {
		return nil, err
	}
	if err := scheduler.Start(schedule); err != nil {
		return nil, fmt.Errorf("invalid reingest schedule: %w", err)
	}
	return scheduler.Stop, nil
}

// workerCommand runs the claim loop. The loop processes one job at a time;
// the re-ingestion sweep only shares the process when --reingest is given.
func workerCommand(c *cli.Context) error {
	ctx, stop := signalContext(c)
	defer stop()

	return withApp(c, func(_ context.Context, app *lectern.App) error {
		schedule := app.Config().Worker.ReingestSchedule
		if c.Bool("reingest") && schedule == "" {
			return fmt.Errorf("--reingest: %w", errNoSchedule)
		}

		if !c.Bool("skip-preflight") {
			if err := app.Preflight(ctx); err != nil {
				return fmt.Errorf("preflight failed: %w", err)
			}
		}

		coordinator, err := app.Coordinator()
		if err != nil {
			return fmt.Errorf("failed to create coordinator: %w", err)
		}

		switch {
		case c.Bool("reingest"):
			stopSweep, err := startSweep(app)
			if err != nil {
				return err
			}
			defer stopSweep()
			slog.Warn("re-ingestion sweep shares the worker process", "schedule", schedule)
		case schedule != "":
			slog.Info("re-ingestion sweep not started; run `lectern reingest --scheduled` or pass --reingest",
				"schedule", schedule)
		}

		err = coordinator.Run(ctx)
		if worker.KindOf(err) == worker.KindConfig {
			return cli.Exit(err.Error(), 2)
		}
		return err
	})
}

func submitCommand(c *cli.Context) error {
	path, err := requireArg(c, "file")
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	return withApp(c, func(ctx context.Context, app *lectern.App) error {
		owner, err := resolveOwner(ctx, c, app)
		if err != nil {
			return err
		}
		job, err := app.Jobs().Submit(ctx, jobs.Upload{
			OwnerID:     owner,
			Filename:    filepath.Base(path),
			Data:        data,
			ContentType: c.String("content-type"),
			Prompt:      c.String("prompt"),
		})
		if err != nil {
			return fmt.Errorf("submission failed: %w", err)
		}
		fmt.Fprintln(c.App.Writer, job.ID)
		return nil
	})
}

func statusCommand(c *cli.Context) error {
	id, err := requireArg(c, "job id")
	if err != nil {
		return err
	}
	return withApp(c, func(ctx context.Context, app *lectern.App) error {
		owner, err := resolveOwner(ctx, c, app)
		if err != nil {
			return err
		}
		entry, err := app.Jobs().Status(ctx, owner, id)
		if err != nil {
			return fmt.Errorf("status of %s: %w", id, err)
		}
		renderEntry(c.App.Writer, entry)
		return nil
	})
}

func resultCommand(c *cli.Context) error {
	id, err := requireArg(c, "job id")
	if err != nil {
		return err
	}
	return withApp(c, func(ctx context.Context, app *lectern.App) error {
		owner, err := resolveOwner(ctx, c, app)
		if err != nil {
			return err
		}
		job, err := app.Jobs().Result(ctx, owner, id)
		if err != nil {
			return fmt.Errorf("result of %s: %w", id, err)
		}
		renderResult(c.App.Writer, job)
		return nil
	})
}

func listCommand(c *cli.Context) error {
	return withApp(c, func(ctx context.Context, app *lectern.App) error {
		owner, err := resolveOwner(ctx, c, app)
		if err != nil {
			return err
		}
		page, err := app.Jobs().List(ctx, owner, c.Int("page"), c.Int("size"))
		if err != nil {
			return err
		}
		renderPage(c.App.Writer, page)
		return nil
	})
}

func documentsCommand(c *cli.Context) error {
	var status core.JobStatus
	if s := c.String("status"); s != "" {
		parsed, err := core.ParseStatus(s)
		if err != nil {
			return err
		}
		status = parsed
	}
	return withApp(c, func(ctx context.Context, app *lectern.App) error {
		owner, err := resolveOwner(ctx, c, app)
		if err != nil {
			return err
		}
		docs, err := app.Jobs().Documents(ctx, owner, status, c.Int("offset"), c.Int("limit"))
		if err != nil {
			return err
		}
		renderJobs(c.App.Writer, docs)
		return nil
	})
}

func deleteCommand(c *cli.Context) error {
	id, err := requireArg(c, "job id")
	if err != nil {
		return err
	}
	return withApp(c, func(ctx context.Context, app *lectern.App) error {
		owner, err := resolveOwner(ctx, c, app)
		if err != nil {
			return err
		}
		if err := app.Jobs().Delete(ctx, owner, id); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
		fmt.Fprintf(c.App.Writer, "deleted %s\n", id)
		return nil
	})
}

func summarizeCommand(c *cli.Context) error {
	id, err := requireArg(c, "job id")
	if err != nil {
		return err
	}
	return withApp(c, func(ctx context.Context, app *lectern.App) error {
		owner, err := resolveOwner(ctx, c, app)
		if err != nil {
			return err
		}
		job, err := app.Jobs().Summarize(ctx, owner, id, c.String("prompt"))
		if err != nil {
			return fmt.Errorf("summarize %s: %w", id, err)
		}
		fmt.Fprintln(c.App.Writer, job.Summary)
		return nil
	})
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return errors.New("question is required")
	}
	return withApp(c, func(ctx context.Context, app *lectern.App) error {
		owner, err := resolveOwner(ctx, c, app)
		if err != nil {
			return err
		}
		topK := c.Int("top-k")
		if topK <= 0 {
			topK = app.Config().Retrieval.TopK
		}
		query := retrieval.Query{OwnerID: owner, Text: question, JobID: c.String("job"), TopK: topK}

		if c.Bool("retrieve-only") {
			results, err := app.Retrieval().Retrieve(ctx, query)
			if err != nil {
				return err
			}
			renderResults(c.App.Writer, results)
			return nil
		}

		answer, err := app.Retrieval().Ask(ctx, query)
		if err != nil {
			return err
		}
		renderAnswer(c.App.Writer, answer)
		return nil
	})
}

func reingestCommand(c *cli.Context) error {
	rc := &reingest.Config{
		OwnerID:        c.String("owner"),
		Force:          c.Bool("force"),
		BatchSize:      c.Int("batch-size"),
		PoolSize:       c.Int("pool-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	if rc.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if rc.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if rc.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	if c.Bool("scheduled") {
		return scheduledReingest(c)
	}
	return withApp(c, func(ctx context.Context, app *lectern.App) error {
		if rc.PoolSize <= 0 {
			rc.PoolSize = app.Config().Worker.ReingestPoolSize
		}
		reingester, err := app.Reingester(rc, reingest.WithProgress(c.App.ErrWriter))
		if err != nil {
			return err
		}
		stats, err := reingester.Run(ctx)
		if err != nil {
			return fmt.Errorf("re-ingestion failed: %w", err)
		}
		renderStats(c.App.Writer, stats)
		return nil
	})
}

// scheduledReingest runs the sweep on worker.reingest_schedule until
// interrupted.
func scheduledReingest(c *cli.Context) error {
	ctx, stop := signalContext(c)
	defer stop()

	return withApp(c, func(_ context.Context, app *lectern.App) error {
		stopSweep, err := startSweep(app)
		if err != nil {
			return fmt.Errorf("--scheduled: %w", err)
		}
		defer stopSweep()
		slog.Info("re-ingestion sweep scheduled", "schedule", app.Config().Worker.ReingestSchedule)
		<-ctx.Done()
		return nil
	})
}

func registerCommand(c *cli.Context) error {
	return withApp(c, func(ctx context.Context, app *lectern.App) error {
		user, err := app.Jobs().RegisterUser(ctx, c.String("email"), c.String("api-key"))
		if err != nil {
			return err
		}
		renderUser(c.App.Writer, user)
		return nil
	})
}

func healthCommand(c *cli.Context) error {
	return withApp(c, func(ctx context.Context, app *lectern.App) error {
		h := app.Jobs().Health(ctx)
		renderHealth(c.App.Writer, h)
		if !h.CacheOK || h.QueueDepth < 0 {
			return cli.Exit("unhealthy", 1)
		}
		return nil
	})
}
