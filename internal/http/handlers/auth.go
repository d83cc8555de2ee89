package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/recipehub/internal/auth"
	"github.com/geocoder89/recipehub/internal/domain/user"
	"github.com/geocoder89/recipehub/internal/http/cookies"
	"github.com/geocoder89/recipehub/internal/http/middlewares"
	"github.com/geocoder89/recipehub/internal/session"
	"github.com/gin-gonic/gin"
)

type SessionService interface {
	Register(ctx context.Context, in session.RegisterInput) (session.Result, error)
	Login(ctx context.Context, in session.LoginInput) (session.Result, error)
	Refresh(ctx context.Context, raw string) (session.Result, error)
	Logout(ctx context.Context, raw string)
	Me(ctx context.Context, sess auth.Session) (user.User, error)
}

type AuthHandler struct {
	sessions SessionService
	cookies  cookies.Policy
}

func NewAuthHandler(sessions SessionService, policy cookies.Policy) *AuthHandler {
	return &AuthHandler{sessions: sessions, cookies: policy}
}

type RegisterRequest struct {
	Email    string   `json:"email" binding:"required,email,max=254"`
	Password string   `json:"password" binding:"required,min=8,max=72"`
	Name     string   `json:"name" binding:"required,max=100"`
	Roles    []string `json:"roles" binding:"omitempty,max=4,dive,required,alphanum,max=32"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type MeResponse struct {
	Message string    `json:"message"`
	User    user.User `json:"user"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	res, err := h.sessions.Register(ctx.Request.Context(), session.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Roles:    req.Roles,
	})
	if err != nil {
		Fail(ctx, err)
		return
	}

	h.cookies.SetSession(ctx.Writer, res.Tokens.AccessToken, res.Tokens.RefreshToken)
	RespondMessage(ctx, http.StatusCreated, "user registered")
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	res, err := h.sessions.Login(ctx.Request.Context(), session.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		Fail(ctx, err)
		return
	}

	h.cookies.SetSession(ctx.Writer, res.Tokens.AccessToken, res.Tokens.RefreshToken)
	RespondMessage(ctx, http.StatusOK, "logged in")
}

func (h *AuthHandler) Refresh(ctx *gin.Context) {
	raw, _ := ctx.Cookie(cookies.RefreshTokenName)

	res, err := h.sessions.Refresh(ctx.Request.Context(), raw)
	if err != nil {
		Fail(ctx, err)
		return
	}

	h.cookies.SetSession(ctx.Writer, res.Tokens.AccessToken, res.Tokens.RefreshToken)
	RespondMessage(ctx, http.StatusOK, "session refreshed")
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	raw, _ := ctx.Cookie(cookies.RefreshTokenName)

	h.sessions.Logout(ctx.Request.Context(), raw)

	h.cookies.Clear(ctx.Writer)
	RespondMessage(ctx, http.StatusOK, "logged out")
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	u, err := h.sessions.Me(ctx.Request.Context(), middlewares.SessionFromContext(ctx))
	if err != nil {
		Fail(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, MeResponse{Message: "current user", User: u})
}
