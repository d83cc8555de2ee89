package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/recipehub/internal/config"
	"github.com/geocoder89/recipehub/internal/http/cookies"
	"github.com/geocoder89/recipehub/internal/http/handlers"
	"github.com/geocoder89/recipehub/internal/http/middlewares"
	"github.com/geocoder89/recipehub/internal/observability"
	"github.com/geocoder89/recipehub/internal/session"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Deps struct {
	Log      *slog.Logger
	Config   config.Config
	Sessions *session.Service
	JWT      middlewares.TokenVerifier
	Ping     handlers.Pinger

	// Optional. Without Limiter an in-process window is used; without Prom
	// no metrics are recorded or served.
	Limiter        middlewares.Limiter
	Prom           *observability.Prom
	MetricsHandler http.Handler
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()

	// ErrorHandler sits outermost so panics and aborts from everything below
	// are rendered in one place.
	r.Use(middlewares.ErrorHandler(d.Log))
	r.Use(middlewares.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware("recipehub-api"))
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders(d.Config.IsProd()))
	r.Use(middlewares.CORSMiddleware(d.Config.CORSOrigins))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.MaxBodyBytes(middlewares.DefaultMaxBodyBytes))
	r.Use(middlewares.ResolveSession(d.JWT))

	// health
	h := handlers.NewHealthHandler(d.Ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(d.MetricsHandler))
	}

	limiter := d.Limiter
	if limiter == nil {
		limiter = middlewares.NewMemoryLimiter(d.Config.AuthRatePerMinute, time.Minute)
	}
	throttle := middlewares.RateLimit(limiter, middlewares.KeyByIP, d.Log)

	authHandler := handlers.NewAuthHandler(d.Sessions, cookies.PolicyFor(d.Config.IsProd(), d.Config.RefreshTTL()))

	// refresh and logout read cookies only
	requireJSON := middlewares.RequireJSON()

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", requireJSON, throttle, authHandler.Register)
		authGroup.POST("/login", requireJSON, throttle, authHandler.Login)
		authGroup.POST("/refresh", throttle, authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.GET("/me", middlewares.RequireAuth(), authHandler.Me)
	}

	adminHandler := handlers.NewAdminHandler(d.Sessions)

	admin := r.Group("/admin")
	admin.Use(middlewares.RequireRole("admin"))
	{
		admin.POST("/users/:id/sessions/revoke", adminHandler.RevokeSessions)
	}

	return r
}
