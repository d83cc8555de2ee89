package middlewares

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/geocoder89/recipehub/internal/apperr"
	"github.com/geocoder89/recipehub/internal/domain/token"
	"github.com/geocoder89/recipehub/internal/domain/user"
	"github.com/geocoder89/recipehub/internal/repo"
	"github.com/gin-gonic/gin"
)

type ErrorBody struct {
	Message   string `json:"message"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// ErrorHandler is the only place error responses are written. Handlers and
// other middlewares record failures with ctx.Error and abort.
func ErrorHandler(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		ae := resolve(err)

		if ae.Status >= http.StatusInternalServerError {
			log.ErrorContext(c.Request.Context(), "request_failed",
				"err", err,
				"route", c.FullPath(),
				"request_id", RequestIDFrom(c),
			)
		}

		for k, vs := range ae.Header {
			for _, v := range vs {
				c.Writer.Header().Add(k, v)
			}
		}

		c.JSON(ae.Status, ErrorBody{
			Message:   ae.Message,
			Code:      ae.Code,
			RequestID: RequestIDFrom(c),
			Details:   ae.Details,
		})
	}
}

// Recovery turns a panic into an ordinary 500 routed through ErrorHandler.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		_ = c.Error(fmt.Errorf("panic: %v", recovered))
		c.Abort()
	})
}

func resolve(err error) *apperr.Error {
	if ae, ok := apperr.As(err); ok {
		return ae
	}

	switch {
	case errors.Is(err, repo.ErrDuplicateKey):
		return apperr.Conflict("already exists").Wrap(err)
	case errors.Is(err, user.ErrNotFound), errors.Is(err, token.ErrNotFound):
		return apperr.NotFound("not found").Wrap(err)
	default:
		return apperr.Internal(err)
	}
}
