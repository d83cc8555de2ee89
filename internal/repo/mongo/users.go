package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/recipehub/internal/domain/user"
	"github.com/geocoder89/recipehub/internal/repo"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type UsersRepo struct {
	coll *mongo.Collection
	obs  repo.Observer
}

func NewUsersRepo(db *mongo.Database, obs repo.Observer) *UsersRepo {
	return &UsersRepo{coll: db.Collection(usersCollection), obs: obs}
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	if u.Favorites == nil {
		u.Favorites = []string{}
	}
	if u.Notes == nil {
		u.Notes = []user.RecipeNotes{}
	}

	err := repo.Observe(r.obs, "users.create", func() error {
		_, err := r.coll.InsertOne(ctx, u)
		return translate(err)
	})
	if err != nil {
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.findOne(ctx, "users.get_by_email", bson.D{{Key: "email", Value: email}})
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.findOne(ctx, "users.get_by_id", bson.D{{Key: "_id", Value: id}})
}

func (r *UsersRepo) findOne(ctx context.Context, op string, filter bson.D) (user.User, error) {
	var u user.User

	err := repo.Observe(r.obs, op, func() error {
		err := r.coll.FindOne(ctx, filter).Decode(&u)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.ErrNotFound
		}
		return err
	})

	return u, err
}

// translate maps the driver's duplicate key signal onto repo.ErrDuplicateKey.
func translate(err error) error {
	if err != nil && mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", repo.ErrDuplicateKey, err)
	}
	return err
}
