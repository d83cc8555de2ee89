package janitor

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves liveness and readiness for the janitor process, and
// metrics when given a handler for them. Readiness needs the schedule running
// and the store answering ping.
func (j *Janitor) HealthHandler(ping func(ctx context.Context) error, metrics http.Handler) http.Handler {
	r := gin.New()

	r.Use(gin.Recovery())

	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	// liveness: process is up
	r.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/readyz", func(c *gin.Context) {
		if !j.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
			return
		}

		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
			defer cancel()

			if err := ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store_unavailable"})
				return
			}
		}

		resp := gin.H{"status": "ready"}
		if last := j.LastSuccess(); !last.IsZero() {
			resp["lastPurge"] = last
		}
		c.JSON(http.StatusOK, resp)
	})

	return r
}
