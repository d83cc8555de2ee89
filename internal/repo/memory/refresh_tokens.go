package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/recipehub/internal/domain/token"
	"github.com/geocoder89/recipehub/internal/repo"
)

type RefreshTokensRepo struct {
	mu     sync.Mutex
	byHash map[string]token.RefreshToken
}

func NewRefreshTokensRepo() *RefreshTokensRepo {
	return &RefreshTokensRepo{byHash: make(map[string]token.RefreshToken)}
}

func (r *RefreshTokensRepo) Create(_ context.Context, row token.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byHash[row.TokenHash]; exists {
		return repo.ErrDuplicateKey
	}
	r.byHash[row.TokenHash] = row
	return nil
}

// Consume removes and returns the row under one lock, so concurrent callers
// with the same hash see exactly one success.
func (r *RefreshTokensRepo) Consume(_ context.Context, tokenHash string) (token.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.byHash[tokenHash]
	if !ok {
		return token.RefreshToken{}, token.ErrNotFound
	}
	delete(r.byHash, tokenHash)
	return row, nil
}

func (r *RefreshTokensRepo) DeleteByHash(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	delete(r.byHash, tokenHash)
	r.mu.Unlock()
	return nil
}

func (r *RefreshTokensRepo) DeleteAllForUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for h, row := range r.byHash {
		if row.UserID == userID {
			delete(r.byHash, h)
			n++
		}
	}
	return n, nil
}

func (r *RefreshTokensRepo) PurgeIssuedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for h, row := range r.byHash {
		if row.IssuedAt.Before(cutoff) {
			delete(r.byHash, h)
			n++
		}
	}
	return n, nil
}

func (r *RefreshTokensRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byHash)
}
