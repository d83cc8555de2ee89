package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/recipehub/internal/apperr"
	"github.com/geocoder89/recipehub/internal/auth"
	"github.com/geocoder89/recipehub/internal/domain/user"
	"github.com/geocoder89/recipehub/internal/http/cookies"
	"github.com/geocoder89/recipehub/internal/http/handlers"
	"github.com/geocoder89/recipehub/internal/http/middlewares"
	"github.com/geocoder89/recipehub/internal/session"
	"github.com/gin-gonic/gin"
)

type fakeSessionService struct {
	registerFn func(ctx context.Context, in session.RegisterInput) (session.Result, error)
	loginFn    func(ctx context.Context, in session.LoginInput) (session.Result, error)
	refreshFn  func(ctx context.Context, raw string) (session.Result, error)
	logoutFn   func(ctx context.Context, raw string)
	meFn       func(ctx context.Context, sess auth.Session) (user.User, error)
	revokeFn   func(ctx context.Context, userID string) (int64, error)
}

func (f *fakeSessionService) Register(ctx context.Context, in session.RegisterInput) (session.Result, error) {
	if f.registerFn != nil {
		return f.registerFn(ctx, in)
	}
	return session.Result{}, nil
}

func (f *fakeSessionService) Login(ctx context.Context, in session.LoginInput) (session.Result, error) {
	if f.loginFn != nil {
		return f.loginFn(ctx, in)
	}
	return session.Result{}, nil
}

func (f *fakeSessionService) Refresh(ctx context.Context, raw string) (session.Result, error) {
	if f.refreshFn != nil {
		return f.refreshFn(ctx, raw)
	}
	return session.Result{}, nil
}

func (f *fakeSessionService) Logout(ctx context.Context, raw string) {
	if f.logoutFn != nil {
		f.logoutFn(ctx, raw)
	}
}

func (f *fakeSessionService) Me(ctx context.Context, sess auth.Session) (user.User, error) {
	if f.meFn != nil {
		return f.meFn(ctx, sess)
	}
	return user.User{}, nil
}

func (f *fakeSessionService) RevokeAll(ctx context.Context, userID string) (int64, error) {
	if f.revokeFn != nil {
		return f.revokeFn(ctx, userID)
	}
	return 0, nil
}

func newAuthRouter(svc *fakeSessionService) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(middlewares.ErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil))))

	h := handlers.NewAuthHandler(svc, cookies.PolicyFor(false, 7*24*time.Hour))
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)
	r.POST("/auth/logout", h.Logout)
	r.GET("/auth/me", h.Me)

	a := handlers.NewAdminHandler(svc)
	r.POST("/admin/users/:id/sessions/revoke", a.RevokeSessions)

	return r
}

func pair() session.Result {
	return session.Result{
		User:   user.User{ID: "u1", Email: "a@x.com"},
		Tokens: auth.TokenPair{AccessToken: "acc-1", RefreshToken: "ref-1"},
	}
}

func cookieMap(w *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range w.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegister_SetsCookiesAnd201(t *testing.T) {
	var got session.RegisterInput
	svc := &fakeSessionService{registerFn: func(_ context.Context, in session.RegisterInput) (session.Result, error) {
		got = in
		return pair(), nil
	}}

	w := postJSON(newAuthRouter(svc), "/auth/register", `{"email":"a@x.com","password":"longenough123","name":"A"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}
	if got.Email != "a@x.com" || got.Name != "A" {
		t.Fatalf("service got %+v", got)
	}

	c := cookieMap(w)
	if c[cookies.AccessTokenName] == nil || c[cookies.AccessTokenName].Value != "acc-1" {
		t.Fatalf("access cookie missing: %v", w.Header().Values("Set-Cookie"))
	}
	if c[cookies.RefreshTokenName] == nil || !c[cookies.RefreshTokenName].HttpOnly {
		t.Fatalf("refresh cookie missing or not HttpOnly")
	}

	var body handlers.MessageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Message == "" {
		t.Fatalf("expected {message}, got %s", w.Body.String())
	}
}

func TestRegister_ValidationDoesNotReachService(t *testing.T) {
	called := false
	svc := &fakeSessionService{registerFn: func(context.Context, session.RegisterInput) (session.Result, error) {
		called = true
		return pair(), nil
	}}

	w := postJSON(newAuthRouter(svc), "/auth/register", `{"email":"not-an-email","password":"short","name":"A"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if called {
		t.Fatalf("service should not be called on invalid input")
	}
}

func TestLogin_FailureSetsNoCookies(t *testing.T) {
	svc := &fakeSessionService{loginFn: func(context.Context, session.LoginInput) (session.Result, error) {
		return session.Result{}, apperr.Unauthorized("invalid_credentials", "invalid credentials")
	}}

	w := postJSON(newAuthRouter(svc), "/auth/login", `{"email":"a@x.com","password":"wrong-password"}`)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Fatalf("failed login set cookies: %v", w.Header().Values("Set-Cookie"))
	}
	if w.Header().Get("WWW-Authenticate") != "" {
		t.Fatalf("bad credentials must not carry the expiry challenge")
	}
}

func TestRefresh_PassesCookieAndRotates(t *testing.T) {
	var sent string
	svc := &fakeSessionService{refreshFn: func(_ context.Context, raw string) (session.Result, error) {
		sent = raw
		res := pair()
		res.Tokens.RefreshToken = "ref-2"
		return res, nil
	}}

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: cookies.RefreshTokenName, Value: "ref-1"})
	w := httptest.NewRecorder()
	newAuthRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}
	if sent != "ref-1" {
		t.Fatalf("service got %q", sent)
	}
	if got := cookieMap(w)[cookies.RefreshTokenName]; got == nil || got.Value != "ref-2" {
		t.Fatalf("refresh cookie not rotated")
	}
}

func TestLogout_AlwaysClears(t *testing.T) {
	for _, cookie := range []string{"", "ref-1"} {
		var sent string
		svc := &fakeSessionService{logoutFn: func(_ context.Context, raw string) { sent = raw }}

		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		if cookie != "" {
			req.AddCookie(&http.Cookie{Name: cookies.RefreshTokenName, Value: cookie})
		}
		w := httptest.NewRecorder()
		newAuthRouter(svc).ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("cookie %q: status = %d", cookie, w.Code)
		}
		if sent != cookie {
			t.Fatalf("service got %q, want %q", sent, cookie)
		}
		c := cookieMap(w)
		if len(c) != 2 || c[cookies.AccessTokenName].MaxAge >= 0 || c[cookies.RefreshTokenName].MaxAge >= 0 {
			t.Fatalf("cookies not cleared: %v", w.Header().Values("Set-Cookie"))
		}
	}
}

func TestMe_ExpiredCarriesChallenge(t *testing.T) {
	svc := &fakeSessionService{meFn: func(context.Context, auth.Session) (user.User, error) {
		return user.User{}, apperr.TokenExpired()
	}}

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	w := httptest.NewRecorder()
	newAuthRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") != apperr.ExpiredTokenChallenge {
		t.Fatalf("challenge = %q", w.Header().Get("WWW-Authenticate"))
	}
}

func TestMe_HidesPasswordHash(t *testing.T) {
	svc := &fakeSessionService{meFn: func(context.Context, auth.Session) (user.User, error) {
		return user.User{ID: "u1", Email: "a@x.com", PasswordHash: "$2a$10$secret"}, nil
	}}

	w := httptest.NewRecorder()
	newAuthRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/me", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("secret")) {
		t.Fatalf("password hash leaked: %s", w.Body.String())
	}

	var body handlers.MeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if body.User.Email != "a@x.com" || body.Message == "" {
		t.Fatalf("body = %+v", body)
	}
}

func TestAdminRevokeSessions(t *testing.T) {
	svc := &fakeSessionService{revokeFn: func(_ context.Context, userID string) (int64, error) {
		if userID != "u1" {
			return 0, apperr.NotFound("user not found")
		}
		return 3, nil
	}}
	r := newAuthRouter(svc)

	w := postJSON(r, "/admin/users/u1/sessions/revoke", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body handlers.RevokeSessionsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Revoked != 3 {
		t.Fatalf("body = %s", w.Body.String())
	}

	w = postJSON(r, "/admin/users/nope/sessions/revoke", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown user status = %d", w.Code)
	}
}
