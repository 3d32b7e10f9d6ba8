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


package worker

import (
	"errors"
	"fmt"
)

// ErrTooManyFailures is returned by Run after too many consecutive
// infrastructure failures.
var ErrTooManyFailures = errors.New("too many consecutive failures")

// Kind classifies a stage failure and decides what the loop does with the
// envelope.
type Kind int

const (
	// KindTransient marks infrastructure failures. The envelope is left for
	// redelivery and the failure counts toward the loop's ceiling.
	KindTransient Kind = iota + 1

	// KindJobFatal marks failures of the document itself. The job is
	// recorded FAILED and the envelope is left for redelivery.
	KindJobFatal

	// KindDegraded marks ingestion failures after the job completed. The
	// job stays COMPLETED and the envelope is acknowledged.
	KindDegraded

	// KindConfig marks configuration errors. The loop stops.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindJobFatal:
		return "job-fatal"
	case KindDegraded:
		return "degraded"
	case KindConfig:
		return "config"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// StageError is the typed failure of one pipeline stage.
type StageError struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failure in %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(kind Kind, stage string, err error) *StageError {
	return &StageError{Kind: kind, Stage: stage, Err: err}
}

// KindOf returns the kind of err. Errors that are not StageErrors are
// treated as transient.
func KindOf(err error) Kind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindTransient
}
