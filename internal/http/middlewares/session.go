package middlewares

import (
	"github.com/geocoder89/recipehub/internal/auth"
	"github.com/geocoder89/recipehub/internal/http/cookies"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

// ResolveSession turns the access cookie into an auth.Session for every
// request. It never rejects; RequireAuth and RequireRole do that.
func ResolveSession(jwt TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := auth.AnonymousSession(nil)

		if raw, err := c.Cookie(cookies.AccessTokenName); err == nil && raw != "" {
			claims, err := jwt.VerifyAccessToken(raw)
			if err != nil {
				sess = auth.AnonymousSession(err)
			} else {
				sess = auth.AuthenticatedSession(claims)
				c.Set(CtxUserID, claims.UserID())
			}
		}

		c.Set(ctxSession, sess)
		c.Next()
	}
}

// SessionFromContext returns the resolved session, or an anonymous one when
// ResolveSession did not run.
func SessionFromContext(c *gin.Context) auth.Session {
	v, ok := c.Get(ctxSession)
	if !ok {
		return auth.AnonymousSession(nil)
	}
	sess, ok := v.(auth.Session)
	if !ok {
		return auth.AnonymousSession(nil)
	}
	return sess
}

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := SessionFromContext(c).Require(); err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Next()
	}
}
