package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// heartbeat extends the lease on receipt every half visibility timeout
// until the returned stop function is called.
func (c *Coordinator) heartbeat(ctx context.Context, receipt string, logger *slog.Logger) (stop func()) {
	interval := c.visibility / 2
	if interval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.queue.ExtendVisibility(ctx, receipt, c.visibility); err != nil {
					logger.Warn("failed to extend visibility", "error", err)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}
