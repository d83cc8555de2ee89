package token

import (
	"errors"
	"time"
)

// ErrNotFound covers both "already redeemed" and "never issued"; callers
// cannot tell the two apart.
var ErrNotFound = errors.New("refresh token not found")

// RefreshToken is the server-side record of one opaque, single-use refresh
// token. Only the keyed hash of the raw value is persisted.
type RefreshToken struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"userId"`
	TokenHash string    `bson:"tokenHash"`
	IssuedAt  time.Time `bson:"issuedAt"`
}
