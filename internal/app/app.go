// Package app wires configuration into stores and the session service. The
// binaries share it so every entry point opens stores the same way.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/recipehub/internal/auth"
	"github.com/geocoder89/recipehub/internal/config"
	"github.com/geocoder89/recipehub/internal/db"
	"github.com/geocoder89/recipehub/internal/repo"
	"github.com/geocoder89/recipehub/internal/repo/memory"
	mongorepo "github.com/geocoder89/recipehub/internal/repo/mongo"
	"github.com/geocoder89/recipehub/internal/repo/postgres"
	"github.com/geocoder89/recipehub/internal/security"
	"github.com/geocoder89/recipehub/internal/session"
)

type TokenStore interface {
	session.RefreshTokenStore
	PurgeIssuedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Stores struct {
	Users  session.UserStore
	Tokens TokenStore
	Ping   func(ctx context.Context) error
	Close  func()
}

// OpenStores connects the backend named by cfg.Store. obs may be nil.
func OpenStores(ctx context.Context, cfg config.Config, obs repo.Observer, log *slog.Logger) (*Stores, error) {
	switch cfg.Store {
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DBURL, int32(cfg.DBMaxConns))
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}

		return &Stores{
			Users:  postgres.NewUsersRepo(pool, obs),
			Tokens: postgres.NewRefreshTokensRepo(pool, obs),
			Ping:   pool.Ping,
			Close:  pool.Close,
		}, nil

	case config.DriverMongo:
		client, err := mongorepo.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}

		database := client.Database(cfg.MongoDB)
		if err := mongorepo.EnsureIndexes(ctx, database); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}

		return &Stores{
			Users:  mongorepo.NewUsersRepo(database, obs),
			Tokens: mongorepo.NewRefreshTokensRepo(database, obs),
			Ping: func(ctx context.Context) error {
				return client.Ping(ctx, nil)
			},
			Close: func() {
				_ = client.Disconnect(context.Background())
			},
		}, nil

	case config.DriverMemory:
		log.Warn("using in-memory store; all users and sessions are lost on restart")

		return &Stores{
			Users:  memory.NewUsersRepo(),
			Tokens: memory.NewRefreshTokensRepo(),
			Close:  func() {},
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store)
	}
}

// NewSessionService builds the token manager and the session service over
// stores. The manager is returned as well since middleware verifies with it.
func NewSessionService(cfg config.Config, stores *Stores, log *slog.Logger, metrics session.Recorder) (*session.Service, *auth.Manager, error) {
	jwtm, err := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL())
	if err != nil {
		return nil, nil, err
	}

	svc := session.NewService(
		stores.Users,
		stores.Tokens,
		security.NewHasher(0),
		auth.NewIssuer(jwtm, stores.Tokens, cfg.RefreshTTL()),
		session.Options{
			AllowedRoles: cfg.RegisterRoles,
			Logger:       log,
			Metrics:      metrics,
		},
	)

	return svc, jwtm, nil
}
