package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/recipehub/internal/db"
	"github.com/geocoder89/recipehub/internal/domain/token"
	"github.com/geocoder89/recipehub/internal/domain/user"
	"github.com/geocoder89/recipehub/internal/repo"
	"github.com/geocoder89/recipehub/internal/repo/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("recipehub"),
		tcpostgres.WithUsername("recipehub"),
		tcpostgres.WithPassword("recipehub"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, db.MigrateUp(connStr))

	pool, err := db.NewPool(ctx, connStr, 10)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func newUser(email string) user.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "$2a$10$hash",
		Name:         "Ada",
		Roles:        []string{user.RoleUser},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestPostgresStores(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()

	users := postgres.NewUsersRepo(pool, nil)
	tokens := postgres.NewRefreshTokensRepo(pool, nil)

	t.Run("users", func(t *testing.T) {
		u := newUser("ada@example.com")
		u.Notes = []user.RecipeNotes{{RecipeID: "r1", Notes: []string{"less salt"}}}

		_, err := users.Create(ctx, u)
		require.NoError(t, err)

		_, err = users.Create(ctx, newUser("ada@example.com"))
		require.ErrorIs(t, err, repo.ErrDuplicateKey)

		got, err := users.GetByEmail(ctx, "ada@example.com")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
		require.Equal(t, []string{user.RoleUser}, got.Roles)
		require.Equal(t, u.Notes, got.Notes)
		require.Empty(t, got.Favorites)

		_, err = users.GetByID(ctx, uuid.NewString())
		require.ErrorIs(t, err, user.ErrNotFound)

		_, err = users.GetByID(ctx, "not-a-uuid")
		require.ErrorIs(t, err, user.ErrNotFound)
	})

	t.Run("refresh tokens are single use", func(t *testing.T) {
		userID := uuid.NewString()
		row := token.RefreshToken{ID: uuid.NewString(), UserID: userID, TokenHash: "hash-single", IssuedAt: time.Now().UTC()}
		require.NoError(t, tokens.Create(ctx, row))

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := tokens.Consume(ctx, "hash-single")
				if err == nil {
					mu.Lock()
					winners++
					mu.Unlock()
					return
				}
				if !errors.Is(err, token.ErrNotFound) {
					t.Errorf("unexpected consume error: %v", err)
				}
			}()
		}
		wg.Wait()
		require.Equal(t, 1, winners)
	})

	t.Run("bulk deletes", func(t *testing.T) {
		userID := uuid.NewString()
		old := time.Now().UTC().Add(-30 * 24 * time.Hour)

		require.NoError(t, tokens.Create(ctx, token.RefreshToken{ID: uuid.NewString(), UserID: userID, TokenHash: "bulk-1", IssuedAt: time.Now().UTC()}))
		require.NoError(t, tokens.Create(ctx, token.RefreshToken{ID: uuid.NewString(), UserID: userID, TokenHash: "bulk-2", IssuedAt: time.Now().UTC()}))
		require.NoError(t, tokens.Create(ctx, token.RefreshToken{ID: uuid.NewString(), UserID: uuid.NewString(), TokenHash: "bulk-old", IssuedAt: old}))

		n, err := tokens.PurgeIssuedBefore(ctx, time.Now().UTC().Add(-7*24*time.Hour))
		require.NoError(t, err)
		require.EqualValues(t, 1, n)

		n, err = tokens.DeleteAllForUser(ctx, userID)
		require.NoError(t, err)
		require.EqualValues(t, 2, n)

		require.NoError(t, tokens.DeleteByHash(ctx, "bulk-1"))
	})
}
