package jobs

import (
	"context"

	"github.com/poiesic/lectern/admission"
)

// Health is a point-in-time view of the pipeline's collaborators.
type Health struct {
	CacheOK    bool
	Tracked    int // jobs indexed in the cache
	QueueDepth int // -1 when the queue depth could not be read
	Ceiling    int
}

// Health checks the cache and the queue depth. Depth goes through the gate,
// so it is served from the cache while fresh.
func (s *Service) Health(ctx context.Context) Health {
	h := Health{QueueDepth: -1, Ceiling: admission.DefaultCeiling}

	if tracked, err := s.tracker.Tracked(ctx); err != nil {
		s.logger.Warn("cache health check failed", "error", err)
	} else {
		h.CacheOK = true
		h.Tracked = tracked
	}

	var (
		depth int
		err   error
	)
	if s.gate != nil {
		h.Ceiling = s.gate.Ceiling()
		depth, err = s.gate.Depth(ctx)
	} else {
		depth, err = s.queue.Depth(ctx)
	}
	if err != nil {
		s.logger.Warn("queue depth read failed", "error", err)
		return h
	}
	h.QueueDepth = depth
	return h
}
