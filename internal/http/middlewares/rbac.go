package middlewares

import (
	"github.com/geocoder89/recipehub/internal/apperr"
	"github.com/gin-gonic/gin"
)

// RequireRole checks the roles embedded in the access token, so a role change
// only applies after the holder's next login or refresh.
func RequireRole(required string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := SessionFromContext(c)

		if _, err := sess.Require(); err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		if !sess.HasRole(required) {
			_ = c.Error(apperr.Forbidden(required + " role required"))
			c.Abort()
			return
		}
		c.Next()
	}
}
