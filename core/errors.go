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

import "errors"

// Lifecycle errors
var (
	// ErrInvalidStatus indicates an unknown JobStatus value.
	ErrInvalidStatus = errors.New("invalid job status")

	// ErrInvalidTransition indicates a lifecycle edge that is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidProgress indicates a progress value outside 0-100.
	ErrInvalidProgress = errors.New("progress must be between 0 and 100")

	// ErrProgressRegressed indicates a progress update lower than the current value.
	ErrProgressRegressed = errors.New("progress cannot decrease")

	// ErrEmptyErrorMessage indicates a FAILED transition without a message.
	ErrEmptyErrorMessage = errors.New("failure message cannot be empty")
)

// Domain validation errors
var (
	// ErrInvalidJob indicates a Job failed validation.
	ErrInvalidJob = errors.New("invalid job")

	// ErrInvalidChunk indicates a Chunk or chunk set failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidEnvelope indicates a queue envelope that cannot be processed.
	ErrInvalidEnvelope = errors.New("invalid envelope")

	// ErrDimensionMismatch indicates an embedding whose length differs from the system dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
