package postgres

import (
	"errors"
	"fmt"

	"github.com/geocoder89/recipehub/internal/repo"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

// translate maps the native unique-violation signal onto repo.ErrDuplicateKey.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", repo.ErrDuplicateKey, pgErr.ConstraintName)
	}
	return err
}

// isInvalidText reports a malformed uuid literal, which can never match a row.
func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation
}
