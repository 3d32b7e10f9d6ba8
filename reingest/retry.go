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



package reingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/ingestion"
	"github.com/poiesic/lectern/storage"
)

// RetryWithBackoff runs operation up to maxAttempts times, doubling baseDelay
// between attempts. Permanent errors are returned at once. Returns the error
// from the last attempt if all attempts fail.
func RetryWithBackoff(ctx context.Context, operation func() error, maxAttempts int, baseDelay time.Duration) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if permanent(lastErr) || attempt == maxAttempts {
			break
		}
		slog.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", maxAttempts, "error", lastErr)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
	return lastErr
}

// permanent reports errors that another attempt cannot fix.
func permanent(err error) bool {
	return errors.Is(err, core.ErrDimensionMismatch) ||
		errors.Is(err, ingestion.ErrNoText) ||
		errors.Is(err, storage.ErrNotFound) ||
		errors.Is(err, context.Canceled)
}

// retrying wraps an Ingester with RetryWithBackoff.
type retrying struct {
	ingester ingestion.Ingester
	attempts int
	delay    time.Duration
}

func (r *retrying) Ingest(ctx context.Context, job *core.Job) (int, error) {
	var n int
	err := RetryWithBackoff(ctx, func() error {
		var err error
		n, err = r.ingester.Ingest(ctx, job)
		return err
	}, r.attempts, r.delay)
	return n, err
}
