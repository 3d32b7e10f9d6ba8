// Package postgres implements the durable record store on PostgreSQL with
// the pgvector extension. Chunk similarity uses the cosine distance operator
// backed by an HNSW index.
package postgres

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
	"github.com/poiesic/lectern/storage"
)

//go:embed schema.sql
var schemaSQL string

var schemaTemplate = template.Must(template.New("schema").Parse(schemaSQL))

// ErrDimensionsRequired is returned when the store is opened without a
// positive embedding dimension; the vector column needs a fixed width.
var ErrDimensionsRequired = errors.New("embedding dimensions are required")

// Config holds pool settings.
type Config struct {
	DSN             string
	Dimensions      int
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// Store implements storage.Store on a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	jobs   *JobRepository
	chunks *ChunkRepository
	users  *UserRepository
}

var _ storage.Store = (*Store)(nil)

// Open connects to PostgreSQL, registers the vector types on every
// connection and applies the schema.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Dimensions <= 0 {
		return nil, ErrDimensionsRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "postgres")

	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "lectern"

	// The extension must exist before the vector type can be registered.
	if err := ensureExtension(ctx, cfg.DSN); err != nil {
		return nil, err
	}
	pc.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "err", err)
		return nil, err
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		logger.Error("database ping failed", "err", err)
		return nil, err
	}

	var schema bytes.Buffer
	if err := schemaTemplate.Execute(&schema, struct{ Dimensions int }{cfg.Dimensions}); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, schema.String()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	logger.Info("connected to database", "dimensions", cfg.Dimensions)

	return &Store{
		pool:   pool,
		logger: logger,
		jobs:   &JobRepository{pool: pool},
		chunks: &ChunkRepository{pool: pool, dims: cfg.Dimensions},
		users:  &UserRepository{pool: pool},
	}, nil
}

func ensureExtension(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	return err
}

func (s *Store) Jobs() storage.JobRepository {
	return s.jobs
}

func (s *Store) Chunks() storage.ChunkRepository {
	return s.chunks
}

func (s *Store) Users() storage.UserRepository {
	return s.users
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.logger.Info("closing database connections")
	s.pool.Close()
	return nil
}

const uniqueViolation = "23505"

func translateError(err error) error {
	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return storage.ErrNotFound
	case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation:
		return fmt.Errorf("%w: %s", storage.ErrDuplicateKey, pgErr.ConstraintName)
	case errors.Is(err, pgx.ErrTxCommitRollback):
		return fmt.Errorf("%w: %w", storage.ErrTransactionFailed, err)
	}
	return err
}

// nullTime maps the zero time to SQL NULL.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func fromNullTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
