package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/recipehub/internal/domain/user"
	"github.com/geocoder89/recipehub/internal/repo"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, password_hash, name, roles, image, favorites, notes, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	obs  repo.Observer
}

func NewUsersRepo(pool *pgxpool.Pool, obs repo.Observer) *UsersRepo {
	return &UsersRepo{pool: pool, obs: obs}
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	if u.Favorites == nil {
		u.Favorites = []string{}
	}
	if u.Notes == nil {
		u.Notes = []user.RecipeNotes{}
	}

	err := repo.Observe(r.obs, "users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (`+userColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			u.ID, u.Email, u.PasswordHash, u.Name, u.Roles, u.Image, u.Favorites, u.Notes, u.CreatedAt, u.UpdatedAt,
		)
		return translate(err)
	})
	if err != nil {
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := repo.Observe(r.obs, "users.get_by_email", func() error {
		return scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE email = $1`, email,
		), &u)
	})

	return u, err
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	var u user.User

	err := repo.Observe(r.obs, "users.get_by_id", func() error {
		return scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
		), &u)
	})
	if isInvalidText(err) {
		return user.User{}, user.ErrNotFound
	}

	return u, err
}

func scanUser(row pgx.Row, u *user.User) error {
	var image *string

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.Roles,
		&image,
		&u.Favorites,
		&u.Notes,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.ErrNotFound
		}
		return err
	}

	if image != nil {
		u.Image = *image
	}
	return nil
}
