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


package storage

import "errors"

// Record lookups.
var (
	// ErrNotFound is returned when a job, chunk set or user does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when a job id, user id or API key is
	// already taken.
	ErrDuplicateKey = errors.New("duplicate key")
)

// Backend failures.
var (
	ErrTransactionFailed = errors.New("transaction failed")
	ErrStorageClosed     = errors.New("store is closed")

	// ErrSerializationFailed wraps codec errors on stored records.
	ErrSerializationFailed = errors.New("record encoding failed")
)

// Query validation.
var (
	// ErrInvalidQuery is returned for negative offsets or limits, empty
	// query vectors and similar caller mistakes.
	ErrInvalidQuery = errors.New("invalid query parameters")

	// ErrOwnerRequired is returned by chunk searches without an owner.
	// Every search is tenant-scoped.
	ErrOwnerRequired = errors.New("owner id required")
)
