package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/recipehub/internal/domain/token"
	"github.com/geocoder89/recipehub/internal/repo"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RefreshTokensRepo struct {
	pool *pgxpool.Pool
	obs  repo.Observer
}

func NewRefreshTokensRepo(pool *pgxpool.Pool, obs repo.Observer) *RefreshTokensRepo {
	return &RefreshTokensRepo{pool: pool, obs: obs}
}

func (r *RefreshTokensRepo) Create(ctx context.Context, row token.RefreshToken) error {
	return repo.Observe(r.obs, "refresh_tokens.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO refresh_tokens (id, user_id, token_hash, issued_at)
			VALUES ($1,$2,$3,$4)`,
			row.ID, row.UserID, row.TokenHash, row.IssuedAt,
		)
		return translate(err)
	})
}

// Consume is a single DELETE ... RETURNING: of two concurrent callers only one
// gets the row back.
func (r *RefreshTokensRepo) Consume(ctx context.Context, tokenHash string) (token.RefreshToken, error) {
	var row token.RefreshToken

	err := repo.Observe(r.obs, "refresh_tokens.consume", func() error {
		err := r.pool.QueryRow(ctx, `
			DELETE FROM refresh_tokens
			WHERE token_hash = $1
			RETURNING id, user_id, token_hash, issued_at
		`, tokenHash).Scan(&row.ID, &row.UserID, &row.TokenHash, &row.IssuedAt)

		if errors.Is(err, pgx.ErrNoRows) {
			return token.ErrNotFound
		}
		return err
	})

	return row, err
}

func (r *RefreshTokensRepo) DeleteByHash(ctx context.Context, tokenHash string) error {
	return repo.Observe(r.obs, "refresh_tokens.delete", func() error {
		_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
		return err
	})
}

func (r *RefreshTokensRepo) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	var n int64

	err := repo.Observe(r.obs, "refresh_tokens.delete_all_for_user", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
		n = tag.RowsAffected()
		return err
	})

	return n, err
}

func (r *RefreshTokensRepo) PurgeIssuedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64

	err := repo.Observe(r.obs, "refresh_tokens.purge", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE issued_at < $1`, cutoff)
		n = tag.RowsAffected()
		return err
	})

	return n, err
}
