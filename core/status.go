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
	"time"
)

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusProcessing JobStatus = "PROCESSING"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
)

// ParseStatus converts s to a JobStatus. Matching is case-insensitive.
func ParseStatus(s string) (JobStatus, error) {
	status := JobStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return status, nil
}

// Valid reports whether s is one of the four known states.
func (s JobStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is COMPLETED or FAILED.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s JobStatus) String() string {
	return string(s)
}

// CanTransition reports whether the lifecycle allows moving from one state
// to another.
//
// Allowed edges:
//   - PENDING -> PROCESSING
//   - PROCESSING -> PROCESSING (progress updates)
//   - PROCESSING -> COMPLETED | FAILED
//   - FAILED -> PROCESSING (redelivery of a failed envelope)
//
// COMPLETED has no outgoing edges.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusProcessing || to == StatusCompleted || to == StatusFailed
	case StatusFailed:
		return to == StatusProcessing
	}
	return false
}

func (j *Job) transition(to JobStatus) error {
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
	}
	j.Status = to
	return nil
}

// Start moves the job into PROCESSING for a new claim.
// StartedAt is set only on the first claim; first reports whether this call set it.
// Calling Start on a job that is already PROCESSING (a redelivered envelope
// whose previous claim crashed) keeps StartedAt and progress untouched.
func (j *Job) Start(now time.Time) (first bool, err error) {
	previous := j.Status
	if err := j.transition(StatusProcessing); err != nil {
		return false, err
	}
	if previous != StatusProcessing {
		j.Progress = 0
	}
	if previous == StatusFailed {
		j.ErrorMessage = ""
	}
	j.Attempts++
	if j.StartedAt.IsZero() {
		j.StartedAt = laterOf(Timestamp(now), j.CreatedAt)
		return true, nil
	}
	return false, nil
}

// SetProgress records progress for a PROCESSING job. Progress never decreases.
func (j *Job) SetProgress(progress int) error {
	if j.Status != StatusProcessing {
		return fmt.Errorf("%w: progress update while %s", ErrInvalidTransition, j.Status)
	}
	if progress < 0 || progress > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidProgress, progress)
	}
	if progress < j.Progress {
		return fmt.Errorf("%w: %d after %d", ErrProgressRegressed, progress, j.Progress)
	}
	j.Progress = progress
	return nil
}

// Complete records the result and moves the job to COMPLETED.
func (j *Job) Complete(result Result, now time.Time) error {
	if err := j.transition(StatusCompleted); err != nil {
		return err
	}
	j.Progress = 100
	j.ResultText = result.Text
	j.PageCount = result.PageCount
	j.Summary = result.Summary
	j.Extractor = result.Extractor
	j.ExtractionSeconds = result.Duration.Seconds()
	j.ErrorMessage = ""
	if j.CompletedAt.IsZero() {
		j.CompletedAt = laterOf(Timestamp(now), j.StartedAt)
	}
	return nil
}

// Fail records message and moves the job to FAILED.
func (j *Job) Fail(message string) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyErrorMessage
	}
	if err := j.transition(StatusFailed); err != nil {
		return err
	}
	j.ErrorMessage = message
	j.ResultText = ""
	j.Summary = ""
	j.PageCount = 0
	return nil
}

// SetSummary replaces the summary of a COMPLETED job and records the
// prompt that produced it.
func (j *Job) SetSummary(prompt, summary string) error {
	if j.Status != StatusCompleted {
		return fmt.Errorf("%w: summary update while %s", ErrInvalidTransition, j.Status)
	}
	j.Prompt = prompt
	j.Summary = summary
	return nil
}

// laterOf keeps timestamps ordered when clocks disagree between processes.
func laterOf(t, floor time.Time) time.Time {
	if t.Before(floor) {
		return floor
	}
	return t
}
