// Package session implements register, login, refresh, logout and me on top
// of the credential stores and the token issuer. It knows nothing about HTTP;
// handlers translate its results into cookies and status codes.
package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/geocoder89/recipehub/internal/apperr"
	"github.com/geocoder89/recipehub/internal/auth"
	"github.com/geocoder89/recipehub/internal/domain/token"
	"github.com/geocoder89/recipehub/internal/domain/user"
	"github.com/geocoder89/recipehub/internal/repo"
	"github.com/geocoder89/recipehub/internal/security"
	"github.com/google/uuid"
)

type UserStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
}

type RefreshTokenStore interface {
	Create(ctx context.Context, row token.RefreshToken) error
	Consume(ctx context.Context, tokenHash string) (token.RefreshToken, error)
	DeleteByHash(ctx context.Context, tokenHash string) error
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) error
}

// Recorder counts protocol outcomes. *observability.Prom satisfies it.
type Recorder interface {
	AuthEvent(event, result string)
}

const (
	resultOK       = "ok"
	resultRejected = "rejected"
	resultError    = "error"
)

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Roles    []string
}

type LoginInput struct {
	Email    string
	Password string
}

// Result is what a successful register, login or refresh hands back to the
// transport: the user and the fresh credential pair.
type Result struct {
	User   user.User
	Tokens auth.TokenPair
}

type Options struct {
	// AllowedRoles bounds what a self-registration may ask for.
	AllowedRoles []string
	Logger       *slog.Logger
	Metrics      Recorder
	Now          func() time.Time
}

type Service struct {
	users   UserStore
	tokens  RefreshTokenStore
	hasher  PasswordHasher
	issuer  *auth.Issuer
	allowed []string
	log     *slog.Logger
	metrics Recorder
	now     func() time.Time
}

func NewService(users UserStore, tokens RefreshTokenStore, hasher PasswordHasher, issuer *auth.Issuer, opts Options) *Service {
	s := &Service{
		users:   users,
		tokens:  tokens,
		hasher:  hasher,
		issuer:  issuer,
		allowed: opts.AllowedRoles,
		log:     opts.Logger,
		metrics: opts.Metrics,
		now:     opts.Now,
	}

	if len(s.allowed) == 0 {
		s.allowed = user.DefaultRoles()
	}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (Result, error) {
	email := normalizeEmail(in.Email)

	roles := in.Roles
	if len(roles) == 0 {
		roles = user.DefaultRoles()
	}
	for _, r := range roles {
		if !slices.Contains(s.allowed, r) {
			s.record("register", resultRejected)
			return Result{}, apperr.BadRequest("invalid request body", []map[string]string{
				{"field": "roles", "message": "role " + r + " cannot be self-assigned"},
			})
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooLong) {
			s.record("register", resultRejected)
			return Result{}, apperr.BadRequest("invalid request body", []map[string]string{
				{"field": "password", "message": "must be at most 72 bytes"},
			})
		}
		s.record("register", resultError)
		return Result{}, apperr.Internal(err)
	}

	now := s.now().UTC()
	u, err := s.users.Create(ctx, user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Roles:        slices.Compact(slices.Sorted(slices.Values(roles))),
		Favorites:    []string{},
		Notes:        []user.RecipeNotes{},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicateKey) {
			s.record("register", resultRejected)
			return Result{}, apperr.Conflict("email already exists").Wrap(user.ErrEmailTaken)
		}
		s.record("register", resultError)
		return Result{}, err
	}

	pair, err := s.issuer.IssuePair(ctx, u)
	if err != nil {
		s.record("register", resultError)
		return Result{}, err
	}

	s.log.InfoContext(ctx, "user_registered", "user_id", u.ID)
	s.record("register", resultOK)

	return Result{User: u, Tokens: pair}, nil
}

// Login never revokes earlier refresh tokens; each device keeps its own.
func (s *Service) Login(ctx context.Context, in LoginInput) (Result, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.record("login", resultRejected)
			return Result{}, apperr.NotFound("user not found").Wrap(err)
		}
		s.record("login", resultError)
		return Result{}, err
	}

	if err := s.hasher.Compare(u.PasswordHash, in.Password); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			s.log.WarnContext(ctx, "login_failed", "user_id", u.ID)
			s.record("login", resultRejected)
			return Result{}, apperr.Unauthorized("invalid_credentials", "invalid credentials")
		}
		s.record("login", resultError)
		return Result{}, apperr.Internal(err)
	}

	pair, err := s.issuer.IssuePair(ctx, u)
	if err != nil {
		s.record("login", resultError)
		return Result{}, err
	}

	s.log.InfoContext(ctx, "login_ok", "user_id", u.ID)
	s.record("login", resultOK)

	return Result{User: u, Tokens: pair}, nil
}

// Refresh redeems raw exactly once. The row is consumed before anything else
// happens, so a crash afterwards strands the session rather than duplicating it.
func (s *Service) Refresh(ctx context.Context, raw string) (Result, error) {
	if raw == "" {
		s.record("refresh", resultRejected)
		return Result{}, apperr.Unauthorized("missing_refresh_token", "refresh token required")
	}

	row, err := s.tokens.Consume(ctx, s.issuer.HashRefreshToken(raw))
	if err != nil {
		if errors.Is(err, token.ErrNotFound) {
			// already redeemed or never issued; both fail closed
			s.log.WarnContext(ctx, "refresh_rejected")
			s.record("refresh", resultRejected)
			return Result{}, apperr.Unauthorized("invalid_refresh_token", "invalid refresh token")
		}
		s.record("refresh", resultError)
		return Result{}, err
	}

	u, err := s.users.GetByID(ctx, row.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.record("refresh", resultRejected)
			return Result{}, apperr.NotFound("user not found").Wrap(err)
		}
		s.record("refresh", resultError)
		return Result{}, err
	}

	pair, err := s.issuer.IssuePair(ctx, u)
	if err != nil {
		s.record("refresh", resultError)
		return Result{}, err
	}

	s.log.InfoContext(ctx, "refresh_ok", "user_id", u.ID)
	s.record("refresh", resultOK)

	return Result{User: u, Tokens: pair}, nil
}

// Logout deletes the row behind raw if there is one. A missing cookie, an
// unknown token and a store failure all end the client session the same way.
func (s *Service) Logout(ctx context.Context, raw string) {
	if raw == "" {
		s.record("logout", resultOK)
		return
	}

	if err := s.tokens.DeleteByHash(ctx, s.issuer.HashRefreshToken(raw)); err != nil {
		s.log.ErrorContext(ctx, "logout_delete_failed", "err", err)
		s.record("logout", resultError)
		return
	}

	s.record("logout", resultOK)
}

func (s *Service) Me(ctx context.Context, sess auth.Session) (user.User, error) {
	claims, err := sess.Require()
	if err != nil {
		s.record("me", resultRejected)
		return user.User{}, err
	}

	u, err := s.users.GetByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.record("me", resultRejected)
			return user.User{}, apperr.NotFound("user not found").Wrap(err)
		}
		s.record("me", resultError)
		return user.User{}, err
	}

	s.record("me", resultOK)
	return u, nil
}

// RevokeAll deletes every refresh token the user holds. Access tokens already
// issued stay valid until they expire.
func (s *Service) RevokeAll(ctx context.Context, userID string) (int64, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return 0, apperr.NotFound("user not found").Wrap(err)
		}
		return 0, err
	}

	n, err := s.tokens.DeleteAllForUser(ctx, userID)
	if err != nil {
		s.record("revoke_all", resultError)
		return 0, err
	}

	s.log.InfoContext(ctx, "sessions_revoked", "user_id", userID, "count", n)
	s.record("revoke_all", resultOK)

	return n, nil
}

func (s *Service) record(event, result string) {
	if s.metrics != nil {
		s.metrics.AuthEvent(event, result)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
