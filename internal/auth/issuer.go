package auth

import (
	"context"
	"time"

	"github.com/geocoder89/recipehub/internal/domain/token"
	"github.com/geocoder89/recipehub/internal/domain/user"
	"github.com/google/uuid"
)

type RefreshTokenWriter interface {
	Create(ctx context.Context, row token.RefreshToken) error
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Issuer mints both credential types. The refresh lifetime is enforced by
// the cookie's Max-Age, not by the stored row.
type Issuer struct {
	jwt        *Manager
	tokens     RefreshTokenWriter
	refreshTTL time.Duration
}

func NewIssuer(jwt *Manager, tokens RefreshTokenWriter, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		jwt:        jwt,
		tokens:     tokens,
		refreshTTL: refreshTTL,
	}
}

func (i *Issuer) RefreshTTL() time.Duration {
	return i.refreshTTL
}

func (i *Issuer) HashRefreshToken(raw string) string {
	return i.jwt.HashRefreshToken(raw)
}

func (i *Issuer) IssueAccessToken(userID string, roles []string) (string, error) {
	return i.jwt.IssueAccessToken(userID, roles)
}

// IssueRefreshToken persists a new row for userID and returns the raw token.
// This is the only place the cleartext value exists server-side.
func (i *Issuer) IssueRefreshToken(ctx context.Context, userID string) (string, error) {
	raw, err := NewRefreshToken()
	if err != nil {
		return "", err
	}

	row := token.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: i.jwt.HashRefreshToken(raw),
		IssuedAt:  i.jwt.now().UTC(),
	}

	if err := i.tokens.Create(ctx, row); err != nil {
		return "", err
	}

	return raw, nil
}

func (i *Issuer) IssuePair(ctx context.Context, u user.User) (TokenPair, error) {
	access, err := i.IssueAccessToken(u.ID, u.Roles)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := i.IssueRefreshToken(ctx, u.ID)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
