// Package admission applies backpressure to job producers based on the
// observed queue depth.
package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/poiesic/lectern/progress"
)

const (
	// DefaultCeiling is the queue depth above which submissions are refused.
	DefaultCeiling = 1000

	// DefaultDepthTTL is how long a fetched depth is reused.
	DefaultDepthTTL = 10 * time.Second

	// DepthKey is the cache key holding the last fetched depth.
	DepthKey = "health:queue_depth"
)

var (
	// ErrCapacity is returned when the queue is too deep to accept more work.
	ErrCapacity = errors.New("system is at capacity, try again in a few minutes")

	// ErrDepthSourceRequired is returned when a Gate is built without a depth source.
	ErrDepthSourceRequired = errors.New("depth source required")
)

// DepthSource reports the approximate number of waiting messages.
// queue.Queue satisfies it.
type DepthSource interface {
	Depth(ctx context.Context) (int, error)
}

// Gate decides whether new jobs may enter the queue.
type Gate struct {
	source   DepthSource
	cache    progress.Cache
	ceiling  int
	depthTTL time.Duration
	logger   *slog.Logger
}

// Option configures a Gate.
type Option func(*Gate) error

// WithCeiling sets the depth ceiling.
func WithCeiling(n int) Option {
	return func(g *Gate) error {
		if n < 0 {
			return fmt.Errorf("ceiling cannot be negative, got %d", n)
		}
		g.ceiling = n
		return nil
	}
}

// WithCache caches fetched depths in cache. Without a cache every Admit asks the queue.
func WithCache(cache progress.Cache, ttl time.Duration) Option {
	return func(g *Gate) error {
		if ttl <= 0 {
			ttl = DefaultDepthTTL
		}
		g.cache = cache
		g.depthTTL = ttl
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) error {
		if logger == nil {
			logger = slog.Default()
		}
		g.logger = logger
		return nil
	}
}

// NewGate creates a Gate.
func NewGate(source DepthSource, opts ...Option) (*Gate, error) {
	if source == nil {
		return nil, ErrDepthSourceRequired
	}
	g := &Gate{
		source:   source,
		ceiling:  DefaultCeiling,
		depthTTL: DefaultDepthTTL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	g.logger = g.logger.With("component", "admission")
	return g, nil
}

// Ceiling returns the configured ceiling.
func (g *Gate) Ceiling() int {
	return g.ceiling
}

// Depth returns the queue depth, served from the cache while fresh.
func (g *Gate) Depth(ctx context.Context) (int, error) {
	if g.cache != nil {
		raw, err := g.cache.Value(ctx, DepthKey)
		switch {
		case err == nil:
			if depth, convErr := strconv.Atoi(raw); convErr == nil {
				return depth, nil
			}
			g.logger.Warn("ignoring malformed cached depth", "value", raw)
		case !errors.Is(err, progress.ErrNotFound):
			g.logger.Warn("depth cache unavailable, probing queue", "error", err)
		}
	}

	depth, err := g.source.Depth(ctx)
	if err != nil {
		return 0, err
	}
	if g.cache != nil {
		if err := g.cache.SetValue(ctx, DepthKey, strconv.Itoa(depth), g.depthTTL); err != nil {
			g.logger.Warn("failed to cache queue depth", "error", err)
		}
	}
	return depth, nil
}

// Admit reports whether candidates new jobs may be enqueued. It refuses
// with ErrCapacity when depth + candidates - 1 exceeds the ceiling, so a
// single candidate is refused once depth is above it. A failed read admits.
func (g *Gate) Admit(ctx context.Context, candidates int) (bool, error) {
	if candidates < 1 {
		candidates = 1
	}
	depth, err := g.Depth(ctx)
	if err != nil {
		g.logger.Warn("queue depth read failed, admitting", "error", err)
		return true, nil
	}
	if depth+candidates-1 > g.ceiling {
		g.logger.Info("rejecting submission", "depth", depth, "candidates", candidates, "ceiling", g.ceiling)
		return false, ErrCapacity
	}
	return true, nil
}
