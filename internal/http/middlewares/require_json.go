package middlewares

import (
	"net/http"
	"strings"

	"github.com/geocoder89/recipehub/internal/apperr"
	"github.com/gin-gonic/gin"
)

// RequireJSON rejects bodies that are not JSON. Bodyless requests pass.
func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if c.Request.ContentLength == 0 {
				break
			}
			ct := c.GetHeader("Content-Type")
			// allow "application/json; charset=utf-8"
			if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
				_ = c.Error(apperr.New(http.StatusUnsupportedMediaType, "unsupported_media_type", "Content-Type must be application/json"))
				c.Abort()
				return
			}
		}
		c.Next()
	}
}
