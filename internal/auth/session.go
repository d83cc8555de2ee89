package auth

import (
	"errors"
	"slices"

	"github.com/geocoder89/recipehub/internal/apperr"
)

// State is the caller's position in the session protocol.
type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Session is resolved once per request from the access cookie. An anonymous
// session remembers why: no cookie (Err == nil), ErrTokenExpired, or
// ErrInvalidToken.
type Session struct {
	State  State
	Claims *Claims
	Err    error
}

func AnonymousSession(reason error) Session {
	return Session{State: Anonymous, Err: reason}
}

func AuthenticatedSession(claims *Claims) Session {
	return Session{State: Authenticated, Claims: claims}
}

func (s Session) UserID() string {
	if s.State != Authenticated || s.Claims == nil {
		return ""
	}
	return s.Claims.UserID()
}

func (s Session) HasRole(role string) bool {
	if s.State != Authenticated || s.Claims == nil {
		return false
	}
	return slices.Contains(s.Claims.Roles, role)
}

// Require returns the claims of an authenticated session, or the 401 that
// describes the anonymous one. Only expiry gets the challenge header.
func (s Session) Require() (*Claims, error) {
	if s.State == Authenticated && s.Claims != nil {
		return s.Claims, nil
	}

	switch {
	case s.Err == nil:
		return nil, apperr.Unauthorized("missing_access_token", "authentication required")
	case errors.Is(s.Err, ErrTokenExpired):
		return nil, apperr.TokenExpired()
	default:
		return nil, apperr.Unauthorized("invalid_access_token", "invalid access token")
	}
}
