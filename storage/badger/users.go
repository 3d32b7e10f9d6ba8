package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
)

// UserRepository implements storage.UserRepository for BadgerDB.
type UserRepository struct {
	backend *Backend
}

var _ storage.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates a new UserRepository.
func NewUserRepository(backend *Backend) *UserRepository {
	return &UserRepository{backend: backend}
}

// CreateUser stores a user and its API key index.
func (r *UserRepository) CreateUser(ctx context.Context, user *core.User) error {
	if user == nil || user.ID == "" || user.APIKey == "" {
		return storage.ErrInvalidQuery
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, key := range [][]byte{makeUserKey(user.ID), makeUserAPIKey(user.APIKey)} {
			if _, err := tx.Get(key); err == nil {
				return storage.ErrDuplicateKey
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		value, err := storage.MarshalUser(user)
		if err != nil {
			return err
		}
		if err := tx.Set(makeUserKey(user.ID), value); err != nil {
			return err
		}
		return tx.Set(makeUserAPIKey(user.APIKey), []byte(user.ID))
	}, true)
}

// GetUser retrieves a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id string) (*core.User, error) {
	var user *core.User
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		user, err = readUser(tx, id)
		return err
	}, false)
	return user, err
}

// GetUserByAPIKey resolves the API key index, then reads the user.
func (r *UserRepository) GetUserByAPIKey(ctx context.Context, apiKey string) (*core.User, error) {
	var user *core.User
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeUserAPIKey(apiKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		user, err = readUser(tx, string(id))
		return err
	}, false)
	return user, err
}

func readUser(tx *badger.Txn, id string) (*core.User, error) {
	item, err := tx.Get(makeUserKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var user *core.User
	err = item.Value(func(val []byte) error {
		user, err = storage.UnmarshalUser(val)
		return err
	})
	return user, err
}
