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


package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/poiesic/lectern/config"
	"github.com/urfave/cli/v2"
)

const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	ownerFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "owner",
			Aliases: []string{"o"},
			Usage:   "Owner ID the command acts for",
			EnvVars: []string{"LECTERN_OWNER"},
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "Resolve the owner from a registered API key",
			EnvVars: []string{"LECTERN_API_KEY"},
		},
	}

	return &cli.App{
		Name:  "lectern",
		Usage: "Asynchronous document extraction with retrieval-augmented answers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML configuration file",
				EnvVars: []string{"LECTERN_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from this file when it exists",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log output format (text, json)",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "worker",
				Usage:  "Run the extraction worker until interrupted",
				Action: workerCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "reingest",
						Usage: "Also run the re-ingestion sweep on worker.reingest_schedule in this process",
					},
					&cli.BoolFlag{
						Name:  "skip-preflight",
						Usage: "Start without checking the embedding dimension",
					},
				},
			},
			{
				Name:      "submit",
				Usage:     "Upload a document and queue it for extraction",
				ArgsUsage: "<file>",
				Action:    submitCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "prompt",
						Aliases: []string{"p"},
						Usage:   "Summarization prompt applied after extraction",
					},
					&cli.StringFlag{
						Name:  "content-type",
						Usage: "Declared content type; sniffed when empty",
					},
				}, ownerFlags...),
			},
			{
				Name:      "status",
				Usage:     "Show a job's progress",
				ArgsUsage: "<job-id>",
				Action:    statusCommand,
				Flags:     ownerFlags,
			},
			{
				Name:      "result",
				Usage:     "Print the extracted text of a completed job",
				ArgsUsage: "<job-id>",
				Action:    resultCommand,
				Flags:     ownerFlags,
			},
			{
				Name:   "list",
				Usage:  "List your jobs, newest first",
				Action: listCommand,
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:  "page",
						Usage: "Page number, starting at 1",
						Value: 1,
					},
					&cli.IntFlag{
						Name:  "size",
						Usage: "Entries per page",
						Value: 20,
					},
				}, ownerFlags...),
			},
			{
				Name:   "documents",
				Usage:  "List an owner's job records",
				Action: documentsCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only show jobs in this state",
					},
					&cli.IntFlag{
						Name:  "offset",
						Usage: "Number of records to skip",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of records",
						Value: 50,
					},
				}, ownerFlags...),
			},
			{
				Name:      "delete",
				Usage:     "Delete a job together with its chunks and source document",
				ArgsUsage: "<job-id>",
				Action:    deleteCommand,
				Flags:     ownerFlags,
			},
			{
				Name:      "summarize",
				Usage:     "Summarize a completed job with a new prompt",
				ArgsUsage: "<job-id>",
				Action:    summarizeCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "prompt",
						Aliases:  []string{"p"},
						Usage:    "Summarization prompt",
						Required: true,
					},
				}, ownerFlags...),
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from the owner's documents",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "job",
						Usage: "Restrict retrieval to one job",
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Number of chunks to retrieve (default from configuration)",
					},
					&cli.BoolFlag{
						Name:  "retrieve-only",
						Usage: "Print the retrieved chunks without generating an answer",
					},
				}, ownerFlags...),
			},
			{
				Name:   "reingest",
				Usage:  "Rebuild chunks and embeddings for completed jobs",
				Action: reingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "owner",
						Usage: "Limit the sweep to one owner",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Re-ingest jobs that already have chunks",
					},
					&cli.BoolFlag{
						Name:  "scheduled",
						Usage: "Run on worker.reingest_schedule until interrupted instead of once",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of jobs fetched per page",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Number of jobs ingested concurrently (default from configuration)",
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N jobs",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts per job",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Initial delay between retries",
						Value: defaultRetryDelay,
					},
				},
			},
			{
				Name:  "user",
				Usage: "Manage users",
				Subcommands: []*cli.Command{
					{
						Name:   "register",
						Usage:  "Register a user and print the API key",
						Action: registerCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "email",
								Usage:    "Email address of the user",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "api-key",
								Usage: "Use this API key instead of generating one",
							},
						},
					},
				},
			},
			{
				Name:   "health",
				Usage:  "Check the cache and the queue",
				Action: healthCommand,
			},
		},
	}
}

// setup loads the env file and the configuration, then installs the logger.
func setup(c *cli.Context) error {
	if err := loadEnvFile(c.String("env-file")); err != nil {
		return err
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = strings.ToLower(c.String("log-level"))
	}
	if c.IsSet("log-format") {
		cfg.Logging.Format = strings.ToLower(c.String("log-format"))
	}

	logger, err := newLogger(c.App.ErrWriter, cfg.Logging)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]interface{}{}
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func newLogger(w io.Writer, lc config.LoggingConfig) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	var level slog.Level
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", lc.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch lc.Format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("invalid log format %q: must be text or json", lc.Format)
}
