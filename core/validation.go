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


package core

import (
	"fmt"
	"strings"
)

// KeySeparator delimits the segments of ordered-store keys. Job IDs may not
// contain it, otherwise one job's key prefix could cover another job's keys.
const KeySeparator = ":"

// ValidateJobID rejects blank IDs and IDs containing KeySeparator.
func ValidateJobID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidJob)
	}
	if strings.Contains(id, KeySeparator) {
		return fmt.Errorf("%w: id %q contains %q", ErrInvalidJob, id, KeySeparator)
	}
	return nil
}

// ValidateJob validates a Job according to domain rules.
//
// Validation rules:
//   - ID and OwnerID must not be empty; ID must not contain KeySeparator
//   - Status must be a known state
//   - Progress must be 0-100
//   - CreatedAt must be set; StartedAt and CompletedAt, when set, must not precede it
//   - a FAILED job must carry an error message
func ValidateJob(job *Job) error {
	if job == nil {
		return fmt.Errorf("%w: job is nil", ErrInvalidJob)
	}
	if err := ValidateJobID(job.ID); err != nil {
		return err
	}
	if strings.TrimSpace(job.OwnerID) == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidJob)
	}
	if !job.Status.Valid() {
		return fmt.Errorf("%w: %w", ErrInvalidJob, ErrInvalidStatus)
	}
	if job.Progress < 0 || job.Progress > 100 {
		return fmt.Errorf("%w: %w", ErrInvalidJob, ErrInvalidProgress)
	}
	if job.CreatedAt.IsZero() {
		return fmt.Errorf("%w: created_at is required", ErrInvalidJob)
	}
	if !job.StartedAt.IsZero() && job.StartedAt.Before(job.CreatedAt) {
		return fmt.Errorf("%w: started_at precedes created_at", ErrInvalidJob)
	}
	if !job.CompletedAt.IsZero() && job.CompletedAt.Before(job.StartedAt) {
		return fmt.Errorf("%w: completed_at precedes started_at", ErrInvalidJob)
	}
	if job.Status == StatusFailed && job.ErrorMessage == "" {
		return fmt.Errorf("%w: %w", ErrInvalidJob, ErrEmptyErrorMessage)
	}
	return nil
}

// ValidateChunkSet validates the complete chunk set of one job.
//
// Validation rules:
//   - every chunk belongs to the same job and owner
//   - indices form the contiguous range 0..N-1 in order
//   - text is not blank
//   - every embedding has exactly dims elements (skipped when dims is 0)
func ValidateChunkSet(chunks []*Chunk, dims int) error {
	if len(chunks) == 0 {
		return nil
	}
	jobID, ownerID := chunks[0].JobID, chunks[0].OwnerID
	if jobID == "" || ownerID == "" {
		return fmt.Errorf("%w: job and owner are required", ErrInvalidChunk)
	}
	if err := ValidateJobID(jobID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, err)
	}
	for i, chunk := range chunks {
		if chunk == nil {
			return fmt.Errorf("%w: chunk %d is nil", ErrInvalidChunk, i)
		}
		if chunk.JobID != jobID || chunk.OwnerID != ownerID {
			return fmt.Errorf("%w: chunk %d belongs to another job or owner", ErrInvalidChunk, i)
		}
		if chunk.Index != i {
			return fmt.Errorf("%w: expected index %d, found %d", ErrInvalidChunk, i, chunk.Index)
		}
		if strings.TrimSpace(chunk.Text) == "" {
			return fmt.Errorf("%w: chunk %d is empty", ErrInvalidChunk, i)
		}
		if dims > 0 && len(chunk.Embedding) != dims {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d", ErrDimensionMismatch, i, len(chunk.Embedding), dims)
		}
	}
	return nil
}
