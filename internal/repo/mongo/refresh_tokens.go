package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/recipehub/internal/domain/token"
	"github.com/geocoder89/recipehub/internal/repo"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type RefreshTokensRepo struct {
	coll *mongo.Collection
	obs  repo.Observer
}

func NewRefreshTokensRepo(db *mongo.Database, obs repo.Observer) *RefreshTokensRepo {
	return &RefreshTokensRepo{coll: db.Collection(refreshTokensCollection), obs: obs}
}

func (r *RefreshTokensRepo) Create(ctx context.Context, row token.RefreshToken) error {
	return repo.Observe(r.obs, "refresh_tokens.create", func() error {
		_, err := r.coll.InsertOne(ctx, row)
		return translate(err)
	})
}

// Consume is FindOneAndDelete: the server removes and returns the document in
// one step, so two callers can never both receive it.
func (r *RefreshTokensRepo) Consume(ctx context.Context, tokenHash string) (token.RefreshToken, error) {
	var row token.RefreshToken

	err := repo.Observe(r.obs, "refresh_tokens.consume", func() error {
		err := r.coll.FindOneAndDelete(ctx, bson.D{{Key: "tokenHash", Value: tokenHash}}).Decode(&row)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return token.ErrNotFound
		}
		return err
	})

	return row, err
}

func (r *RefreshTokensRepo) DeleteByHash(ctx context.Context, tokenHash string) error {
	return repo.Observe(r.obs, "refresh_tokens.delete", func() error {
		_, err := r.coll.DeleteOne(ctx, bson.D{{Key: "tokenHash", Value: tokenHash}})
		return err
	})
}

func (r *RefreshTokensRepo) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	return r.deleteMany(ctx, "refresh_tokens.delete_all_for_user", bson.D{{Key: "userId", Value: userID}})
}

func (r *RefreshTokensRepo) PurgeIssuedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.deleteMany(ctx, "refresh_tokens.purge", bson.D{{Key: "issuedAt", Value: bson.D{{Key: "$lt", Value: cutoff}}}})
}

func (r *RefreshTokensRepo) deleteMany(ctx context.Context, op string, filter bson.D) (int64, error) {
	var n int64

	err := repo.Observe(r.obs, op, func() error {
		res, err := r.coll.DeleteMany(ctx, filter)
		if err != nil {
			return err
		}
		n = res.DeletedCount
		return nil
	})

	return n, err
}
