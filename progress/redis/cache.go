// Package redis implements the progress cache on Redis. Job projections are
// hashes under task:{id}; the index of every job is the list all_tasks and
// named indexes are lists under all_tasks:{name}.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/poiesic/lectern/progress"
	goredis "github.com/redis/go-redis/v9"
)

const (
	taskKeyPrefix = "task:"
	allTasksKey   = "all_tasks"
)

// Cache implements progress.Cache on a Redis client.
type Cache struct {
	client goredis.UniversalClient
	ttl    time.Duration
	owns   bool
	closed atomic.Bool
	logger *slog.Logger
}

var _ progress.Cache = (*Cache)(nil)

// Option configures a Cache.
type Option func(*Cache) error

// WithTTL sets the retention window for job entries.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) error {
		if ttl <= 0 {
			return fmt.Errorf("ttl must be positive, got %s", ttl)
		}
		c.ttl = ttl
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) error {
		c.logger = logger
		return nil
	}
}

// Open connects to the Redis server at addr and checks it answers.
func Open(ctx context.Context, addr, password string, db int, opts ...Option) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	c, err := New(client, opts...)
	if err != nil {
		client.Close()
		return nil, err
	}
	c.owns = true
	return c, nil
}

// New wraps an existing client. The caller keeps ownership of client.
func New(client goredis.UniversalClient, opts ...Option) (*Cache, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	c := &Cache{client: client, ttl: progress.DefaultTTL, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "redis_cache")
	return c, nil
}

func taskKey(id string) string {
	return taskKeyPrefix + id
}

func (c *Cache) SetFields(ctx context.Context, id string, fields map[string]string) error {
	if c.closed.Load() {
		return progress.ErrCacheClosed
	}
	key := taskKey(id)
	_, err := c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	return err
}

func (c *Cache) Fields(ctx context.Context, id string) (map[string]string, error) {
	if c.closed.Load() {
		return nil, progress.ErrCacheClosed
	}
	fields, err := c.client.HGetAll(ctx, taskKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, progress.ErrNotFound
	}
	return fields, nil
}

func (c *Cache) Delete(ctx context.Context, id string) error {
	if c.closed.Load() {
		return progress.ErrCacheClosed
	}
	return c.client.Del(ctx, taskKey(id)).Err()
}

func indexKey(index string) string {
	if index == progress.AllJobs {
		return allTasksKey
	}
	return allTasksKey + ":" + index
}

func (c *Cache) AppendIndex(ctx context.Context, index, id string) error {
	if c.closed.Load() {
		return progress.ErrCacheClosed
	}
	return c.client.RPush(ctx, indexKey(index), id).Err()
}

func (c *Cache) IndexRange(ctx context.Context, index string, offset, limit int) ([]string, error) {
	if c.closed.Load() {
		return nil, progress.ErrCacheClosed
	}
	if offset < 0 || limit <= 0 {
		return []string{}, nil
	}
	return c.client.LRange(ctx, indexKey(index), int64(offset), int64(offset+limit-1)).Result()
}

func (c *Cache) IndexLen(ctx context.Context, index string) (int, error) {
	if c.closed.Load() {
		return 0, progress.ErrCacheClosed
	}
	n, err := c.client.LLen(ctx, indexKey(index)).Result()
	return int(n), err
}

func (c *Cache) RemoveIndex(ctx context.Context, index, id string) error {
	if c.closed.Load() {
		return progress.ErrCacheClosed
	}
	return c.client.LRem(ctx, indexKey(index), 0, id).Err()
}

func (c *Cache) SetValue(ctx context.Context, key, value string, ttl time.Duration) error {
	if c.closed.Load() {
		return progress.ErrCacheClosed
	}
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *Cache) Value(ctx context.Context, key string) (string, error) {
	if c.closed.Load() {
		return "", progress.ErrCacheClosed
	}
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", progress.ErrNotFound
	}
	return value, err
}

// Close closes the client if the cache opened it.
func (c *Cache) Close() error {
	if c.closed.Swap(true) || !c.owns {
		return nil
	}
	return c.client.Close()
}
