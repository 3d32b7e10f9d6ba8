package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/lectern/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	return writeConfigWith(t, "")
}

// writeConfigWith appends extra TOML to the test configuration.
func writeConfigWith(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "lectern.toml")
	body := `
[storage]
path = "` + filepath.ToSlash(filepath.Join(dir, "db")) + `"

[queue]
wait = "0s"

[blob]
root = "` + filepath.ToSlash(filepath.Join(dir, "blobs")) + `"

[ai]
embedding_host = "http://localhost:11434/v1"
generation_host = "http://localhost:11434/v1"
dimensions = 8
` + extra
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func keepDefaultLogger(t *testing.T) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

// run executes the CLI against cfgPath and returns what it printed.
func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	keepDefaultLogger(t)

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	argv := append([]string{"lectern", "--config", cfgPath, "--env-file", "", "--log-level", "error"}, args...)
	err := app.Run(argv)
	return out.String(), err
}

func writeDocument(t *testing.T, name, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestSubmitStatusListDelete(t *testing.T) {
	cfg := writeConfig(t)
	doc := writeDocument(t, "report.md", "# Quarterly report\n\nRevenue grew in every region.\n")

	out, err := run(t, cfg, "submit", "--owner", "alice", "--prompt", "Summarize briefly", doc)
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.NotEmpty(t, id)

	out, err = run(t, cfg, "status", "--owner", "alice", id)
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "PENDING")
	assert.Contains(t, out, "report.md")

	_, err = run(t, cfg, "status", "--owner", "bob", id)
	assert.Error(t, err, "another owner cannot poll the job")
	_, err = run(t, cfg, "status", id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--owner")

	out, err = run(t, cfg, "list", "--owner", "alice", "--page", "1", "--size", "10")
	require.NoError(t, err)
	assert.Contains(t, out, id)

	out, err = run(t, cfg, "list", "--owner", "bob")
	require.NoError(t, err)
	assert.NotContains(t, out, id)

	out, err = run(t, cfg, "documents", "--owner", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, id)

	out, err = run(t, cfg, "documents", "--owner", "alice", "--status", "completed")
	require.NoError(t, err)
	assert.NotContains(t, out, id)

	_, err = run(t, cfg, "result", "--owner", "alice", id)
	assert.Error(t, err, "a pending job has no result")

	_, err = run(t, cfg, "delete", "--owner", "bob", id)
	assert.Error(t, err, "another owner's job is not visible")

	out, err = run(t, cfg, "delete", "--owner", "alice", id)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted "+id)

	_, err = run(t, cfg, "status", "--owner", "alice", id)
	assert.Error(t, err)
}

func TestSubmitValidation(t *testing.T) {
	cfg := writeConfig(t)
	doc := writeDocument(t, "notes.txt", "some notes")

	_, err := run(t, cfg, "submit", doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--owner")

	_, err = run(t, cfg, "submit", "--owner", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file is required")

	_, err = run(t, cfg, "submit", "--owner", "alice", filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)

	empty := writeDocument(t, "empty.txt", "")
	_, err = run(t, cfg, "submit", "--owner", "alice", empty)
	assert.Error(t, err)
}

func TestUserRegisterAndAPIKey(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, cfg, "user", "register", "--email", "carol@example.com", "--api-key", "lk_test_key")
	require.NoError(t, err)
	assert.Contains(t, out, "carol@example.com")
	assert.Contains(t, out, "lk_test_key")

	doc := writeDocument(t, "memo.txt", "A short memo about the budget.")
	out, err = run(t, cfg, "submit", "--api-key", "lk_test_key", doc)
	require.NoError(t, err)
	id := strings.TrimSpace(out)

	out, err = run(t, cfg, "documents", "--api-key", "lk_test_key")
	require.NoError(t, err)
	assert.Contains(t, out, id)

	_, err = run(t, cfg, "documents", "--api-key", "lk_wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid API key")

	_, err = run(t, cfg, "user", "register")
	assert.Error(t, err, "email is required")
}

func TestHealth(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, cfg, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "1000")
}

func TestReingestNothingToDo(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, cfg, "reingest")
	require.NoError(t, err)
	assert.Contains(t, out, "Scanned")

	_, err = run(t, cfg, "reingest", "--batch-size", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch-size")
}

func TestWorkerSweepIsOptIn(t *testing.T) {
	var sweep *cli.BoolFlag
	for _, cmd := range newApp().Commands {
		if cmd.Name != "worker" {
			continue
		}
		for _, f := range cmd.Flags {
			if bf, ok := f.(*cli.BoolFlag); ok && bf.Name == "reingest" {
				sweep = bf
			}
		}
	}
	require.NotNil(t, sweep, "worker has a --reingest flag")
	assert.False(t, sweep.Value, "the worker runs the claim loop alone by default")

	cfg := writeConfig(t)
	_, err := run(t, cfg, "worker", "--reingest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reingest_schedule")

	_, err = run(t, cfg, "reingest", "--scheduled")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reingest_schedule")
}

func TestScheduledReingestStopsOnCancel(t *testing.T) {
	keepDefaultLogger(t)
	cfg := writeConfigWith(t, `
[worker]
reingest_schedule = "0 0 3 * * *"
`)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	app := newApp()
	app.Writer = io.Discard
	app.ErrWriter = io.Discard
	err := app.RunContext(ctx, []string{"lectern", "--config", cfg, "--env-file", "", "--log-level", "error",
		"reingest", "--scheduled"})
	require.NoError(t, err)
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}

func TestAskRequiresQuestion(t *testing.T) {
	cfg := writeConfig(t)

	_, err := run(t, cfg, "ask", "--owner", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "question is required")
}

func TestSetupRejectsBadInput(t *testing.T) {
	cfg := writeConfig(t)

	_, err := run(t, cfg, "--log-level", "verbose", "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")

	_, err = run(t, filepath.Join(t.TempDir(), "missing.toml"), "health")
	assert.Error(t, err)

	_, err = run(t, cfg, "documents", "--owner", "alice", "--status", "archived")
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	assert.NoError(t, loadEnvFile(""))
	assert.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), ".env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LECTERN_CLI_TEST_VALUE=from-env-file\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("LECTERN_CLI_TEST_VALUE") })

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from-env-file", os.Getenv("LECTERN_CLI_TEST_VALUE"))
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		debug   bool
		json    bool
		wantErr bool
	}{
		{name: "defaults", cfg: config.LoggingConfig{}},
		{name: "debug text", cfg: config.LoggingConfig{Level: "debug", Format: "text"}, debug: true},
		{name: "json", cfg: config.LoggingConfig{Level: "info", Format: "json"}, json: true},
		{name: "bad level", cfg: config.LoggingConfig{Level: "loud"}, wantErr: true},
		{name: "bad format", cfg: config.LoggingConfig{Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := newLogger(&buf, tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			logger.Debug("debug line")
			logger.Info("info line")
			assert.Equal(t, tt.debug, strings.Contains(buf.String(), "debug line"))
			assert.Contains(t, buf.String(), "info line")
			if tt.json {
				assert.True(t, strings.HasPrefix(buf.String(), "{"))
			}
		})
	}
}
