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

package badger

import "github.com/poiesic/lectern/storage"

// Store implements storage.Store on a badger Backend.
type Store struct {
	backend *Backend
	ownsDB  bool
	jobs    *JobRepository
	chunks  *ChunkRepository
	users   *UserRepository
}

var _ storage.Store = (*Store)(nil)

// NewStore opens (or creates) a database at path and returns a store that
// closes it on Close. dims is the system embedding dimension; 0 disables
// the check.
func NewStore(path string, dims int) (storage.Store, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	s := newStore(backend, dims)
	s.ownsDB = true
	return s, nil
}

// NewStoreWithBackend returns a store on a shared backend. Closing the
// store leaves the backend open.
func NewStoreWithBackend(backend *Backend, dims int) storage.Store {
	return newStore(backend, dims)
}

// NewMemoryStore creates an in-memory store for testing.
// Caller must close the store when done.
func NewMemoryStore(dims int) (storage.Store, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}
	s := newStore(backend, dims)
	s.ownsDB = true
	return s, nil
}

func newStore(backend *Backend, dims int) *Store {
	return &Store{
		backend: backend,
		jobs:    NewJobRepository(backend),
		chunks:  NewChunkRepository(backend, dims),
		users:   NewUserRepository(backend),
	}
}

func (s *Store) Jobs() storage.JobRepository     { return s.jobs }
func (s *Store) Chunks() storage.ChunkRepository { return s.chunks }
func (s *Store) Users() storage.UserRepository   { return s.users }

// Close closes the backend if the store opened it.
func (s *Store) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.backend.Close()
}
