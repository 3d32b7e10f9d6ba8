package jobs

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/poiesic/lectern/core"
)

// ErrInvalidUser is returned by RegisterUser for a blank email.
var ErrInvalidUser = errors.New("email is required")

// RegisterUser creates a user. A blank apiKey gets a generated one.
func (s *Service) RegisterUser(ctx context.Context, email, apiKey string) (*core.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrInvalidUser
	}
	if apiKey == "" {
		apiKey = newAPIKey()
	}
	user := &core.User{
		ID:        core.NewID(),
		Email:     email,
		APIKey:    apiKey,
		CreatedAt: core.Timestamp(s.now()),
	}
	if err := s.store.Users().CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "owner_id", user.ID)
	return user, nil
}

// Authenticate resolves the user holding apiKey.
func (s *Service) Authenticate(ctx context.Context, apiKey string) (*core.User, error) {
	if apiKey == "" {
		return nil, ErrNotFound
	}
	return s.store.Users().GetUserByAPIKey(ctx, apiKey)
}

func newAPIKey() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return "lk_" + hex.EncodeToString(b)
}
