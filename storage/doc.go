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


// Package storage provides the durable record store abstraction for lectern.
//
// The durable store is the source of truth for jobs, their chunks, and the
// users that own them. The progress cache only ever holds a projection of a
// job; when the two disagree the store wins.
//
// Backend packages return the storage interfaces from their public
// constructors:
//
//	store, err := badger.NewStore(path, 1536) // storage.Store
//
// # Architecture
//
//   - Store: aggregates the repositories of one backend
//   - JobRepository: job CRUD plus atomic read-modify-write (UpdateJob)
//   - ChunkRepository: all-or-nothing chunk sets and owner-scoped similarity search
//   - UserRepository: users and API keys
//
// Two backends exist. storage/badger embeds everything in-process and is
// used for development and tests. storage/postgres uses pgvector and an
// HNSW cosine index for production scale.
//
// # Multi-tenancy
//
// FindSimilar refuses queries without an owner (ErrOwnerRequired). Chunks
// carry a copy of their job's owner so the filter never needs a join.
//
// Repository implementations are safe for concurrent use.
package storage
