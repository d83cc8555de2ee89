package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/geocoder89/recipehub/internal/domain/user"
	"github.com/google/uuid"
)

type AdminStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
}

type AdminSeed struct {
	Email    string
	Password string
	Name     string
}

// EnsureAdminUser creates the configured admin account unless one with that
// email already exists. It reports whether a user was created.
func EnsureAdminUser(ctx context.Context, users AdminStore, hasher PasswordHasher, seed AdminSeed) (bool, error) {
	email := strings.ToLower(strings.TrimSpace(seed.Email))
	if email == "" || seed.Password == "" {
		return false, nil
	}

	// check if the user exists
	_, err := users.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}

	if !errors.Is(err, user.ErrNotFound) {
		return false, err
	}

	hash, err := hasher.Hash(seed.Password)
	if err != nil {
		return false, err
	}

	name := seed.Name
	if name == "" {
		name = "Administrator"
	}

	now := time.Now().UTC()

	_, err = users.Create(ctx, user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Roles:        []string{user.RoleUser, user.RoleAdmin},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return false, err
	}

	return true, nil
}
