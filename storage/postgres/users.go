package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
)

// UserRepository implements storage.UserRepository on the users table.
type UserRepository struct {
	pool *pgxpool.Pool
}

var _ storage.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) CreateUser(ctx context.Context, user *core.User) error {
	if user == nil || user.ID == "" || user.APIKey == "" {
		return storage.ErrInvalidQuery
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO users (id, email, api_key, created_at) VALUES ($1, $2, $3, $4)`,
		user.ID, user.Email, user.APIKey, user.CreatedAt.UTC())
	return translateError(err)
}

func (r *UserRepository) GetUser(ctx context.Context, id string) (*core.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *UserRepository) GetUserByAPIKey(ctx context.Context, apiKey string) (*core.User, error) {
	return r.getBy(ctx, "api_key", apiKey)
}

func (r *UserRepository) getBy(ctx context.Context, column, value string) (*core.User, error) {
	var user core.User
	err := r.pool.QueryRow(ctx, `SELECT id, email, api_key, created_at FROM users WHERE `+column+` = $1`, value).
		Scan(&user.ID, &user.Email, &user.APIKey, &user.CreatedAt)
	if err != nil {
		return nil, translateError(err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}
