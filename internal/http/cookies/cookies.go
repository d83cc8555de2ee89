// Package cookies places and clears the two session cookies.
package cookies

import (
	"net/http"
	"time"
)

const (
	AccessTokenName  = "accessToken"
	RefreshTokenName = "refreshToken"
)

// Policy holds the attributes shared by both session cookies.
type Policy struct {
	Secure        bool
	SameSite      http.SameSite
	Partitioned   bool
	Path          string
	RefreshMaxAge time.Duration
}

// PolicyFor picks cross-site capable attributes in production and strict
// same-site ones everywhere else.
func PolicyFor(prod bool, refreshTTL time.Duration) Policy {
	p := Policy{
		Secure:        false,
		SameSite:      http.SameSiteStrictMode,
		Partitioned:   true,
		Path:          "/",
		RefreshMaxAge: refreshTTL,
	}

	if prod {
		p.Secure = true
		p.SameSite = http.SameSiteNoneMode
	}

	return p
}

// SetSession writes both cookies. The access cookie has no Max-Age; the
// token's own expiry bounds it.
func (p Policy) SetSession(w http.ResponseWriter, accessToken, refreshToken string) {
	access := p.base(AccessTokenName, accessToken)
	http.SetCookie(w, access)

	refresh := p.base(RefreshTokenName, refreshToken)
	refresh.MaxAge = int(p.RefreshMaxAge.Seconds())
	http.SetCookie(w, refresh)
}

// Clear expires both cookies with the same attributes they were set with, so
// browsers match and drop them.
func (p Policy) Clear(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenName, RefreshTokenName} {
		c := p.base(name, "")
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (p Policy) base(name, value string) *http.Cookie {
	path := p.Path
	if path == "" {
		path = "/"
	}

	return &http.Cookie{
		Name:        name,
		Value:       value,
		Path:        path,
		HttpOnly:    true,
		Secure:      p.Secure,
		SameSite:    p.SameSite,
		Partitioned: p.Partitioned,
	}
}
