package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/recipehub/internal/auth"
	"github.com/geocoder89/recipehub/internal/config"
	"github.com/geocoder89/recipehub/internal/db"
	apphttp "github.com/geocoder89/recipehub/internal/http"
	"github.com/geocoder89/recipehub/internal/http/cookies"
	"github.com/geocoder89/recipehub/internal/repo/memory"
	"github.com/geocoder89/recipehub/internal/security"
	"github.com/geocoder89/recipehub/internal/session"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

func testConfigAuth() config.Config {
	return config.Config{
		Env:               "test",
		Store:             config.DriverMemory,
		JWTSecret:         "test-secret-key",
		AccessTTLMinutes:  15,
		RefreshTTLDays:    7,
		RegisterRoles:     []string{"user"},
		AuthRatePerMinute: 1000,
		CORSOrigins:       []string{"http://localhost:3000"},
	}
}

type testApp struct {
	router *gin.Engine
	users  *memory.UsersRepo
	tokens *memory.RefreshTokensRepo
	now    time.Time
	mu     sync.Mutex
}

func (a *testApp) clock() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.now
}

func (a *testApp) advance(d time.Duration) {
	a.mu.Lock()
	a.now = a.now.Add(d)
	a.mu.Unlock()
}

func setupAuthTestRouter(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfigAuth()
	app := &testApp{
		users:  memory.NewUsersRepo(),
		tokens: memory.NewRefreshTokensRepo(),
		now:    time.Now(),
	}

	jwtm, err := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	jwtm = jwtm.WithClock(app.clock)

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	hasher := security.NewHasher(bcrypt.MinCost)

	svc := session.NewService(app.users, app.tokens, hasher, auth.NewIssuer(jwtm, app.tokens, cfg.RefreshTTL()), session.Options{
		AllowedRoles: cfg.RegisterRoles,
		Logger:       logger,
	})

	if _, err := db.EnsureAdminUser(context.Background(), app.users, hasher, db.AdminSeed{
		Email: "admin@example.com", Password: "admin-password", Name: "Test Admin",
	}); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	app.router = apphttp.NewRouter(apphttp.Deps{
		Log:      logger,
		Config:   cfg,
		Sessions: svc,
		JWT:      jwtm,
	})

	return app
}

func (a *testApp) do(method, path, body string, cks ...*http.Cookie) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cks {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func sessionCookies(t *testing.T, w *httptest.ResponseRecorder) (access, refresh *http.Cookie) {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		switch c.Name {
		case cookies.AccessTokenName:
			access = c
		case cookies.RefreshTokenName:
			refresh = c
		}
	}
	if access == nil || refresh == nil {
		t.Fatalf("expected both session cookies, got %v", w.Header().Values("Set-Cookie"))
	}
	return access, refresh
}

func register(t *testing.T, app *testApp, email string) (access, refresh *http.Cookie) {
	t.Helper()
	w := app.do(http.MethodPost, "/auth/register", `{"email":"`+email+`","password":"longenough123","name":"A"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d body=%s", w.Code, w.Body.String())
	}
	return sessionCookies(t, w)
}

func TestAuthFlow_RegisterThenMe(t *testing.T) {
	app := setupAuthTestRouter(t)

	access, refresh := register(t, app, "a@x.com")
	if !access.HttpOnly || !refresh.HttpOnly {
		t.Fatalf("session cookies must be HttpOnly")
	}
	if refresh.MaxAge != 7*24*3600 {
		t.Fatalf("refresh Max-Age = %d", refresh.MaxAge)
	}

	w := app.do(http.MethodGet, "/auth/me", "", access)
	if w.Code != http.StatusOK {
		t.Fatalf("me status = %d body=%s", w.Code, w.Body.String())
	}

	var body struct {
		Message string `json:"message"`
		User    struct {
			Email string   `json:"email"`
			Roles []string `json:"roles"`
		} `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad me body: %v", err)
	}
	if body.User.Email != "a@x.com" || len(body.User.Roles) != 1 || body.User.Roles[0] != "user" {
		t.Fatalf("me = %+v", body)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Fatalf("me leaked password data: %s", w.Body.String())
	}
}

func TestAuthFlow_DuplicateRegisterIs409(t *testing.T) {
	app := setupAuthTestRouter(t)
	register(t, app, "dup@x.com")
	before := app.users.Count()

	w := app.do(http.MethodPost, "/auth/register", `{"email":"DUP@x.com","password":"longenough123","name":"B"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if app.users.Count() != before {
		t.Fatalf("a second user row was created")
	}
}

func TestAuthFlow_WrongPassword(t *testing.T) {
	app := setupAuthTestRouter(t)
	register(t, app, "a@x.com")
	rows := app.tokens.Len()

	w := app.do(http.MethodPost, "/auth/login", `{"email":"a@x.com","password":"not-the-password"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Fatalf("cookies set on failed login")
	}
	if app.tokens.Len() != rows {
		t.Fatalf("failed login created a refresh row")
	}

	w = app.do(http.MethodPost, "/auth/login", `{"email":"nobody@x.com","password":"whatever1"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown email status = %d, want 404", w.Code)
	}
}

func TestAuthFlow_RefreshWithUnknownToken(t *testing.T) {
	app := setupAuthTestRouter(t)

	w := app.do(http.MethodPost, "/auth/refresh", "", &http.Cookie{Name: cookies.RefreshTokenName, Value: "stale-or-unknown"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	w = app.do(http.MethodPost, "/auth/refresh", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing cookie status = %d, want 401", w.Code)
	}
}

func TestAuthFlow_RefreshRotatesAndIsSingleUse(t *testing.T) {
	app := setupAuthTestRouter(t)
	_, refresh := register(t, app, "a@x.com")

	w := app.do(http.MethodPost, "/auth/refresh", "", refresh)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh status = %d body=%s", w.Code, w.Body.String())
	}
	access2, refresh2 := sessionCookies(t, w)
	if refresh2.Value == refresh.Value {
		t.Fatalf("refresh cookie was not rotated")
	}

	w = app.do(http.MethodPost, "/auth/refresh", "", refresh)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("reused token status = %d, want 401", w.Code)
	}

	w = app.do(http.MethodGet, "/auth/me", "", access2)
	if w.Code != http.StatusOK {
		t.Fatalf("me with rotated access token = %d", w.Code)
	}

	w = app.do(http.MethodPost, "/auth/refresh", "", refresh2)
	if w.Code != http.StatusOK {
		t.Fatalf("rotated token should work once, got %d", w.Code)
	}
}

func TestAuthFlow_ConcurrentRefreshHasOneWinner(t *testing.T) {
	app := setupAuthTestRouter(t)
	_, refresh := register(t, app, "a@x.com")

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes []int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := app.do(http.MethodPost, "/auth/refresh", "", refresh)
			mu.Lock()
			codes = append(codes, w.Code)
			mu.Unlock()
		}()
	}
	wg.Wait()

	ok, unauthorized := 0, 0
	for _, c := range codes {
		switch c {
		case http.StatusOK:
			ok++
		case http.StatusUnauthorized:
			unauthorized++
		}
	}
	if ok != 1 || unauthorized != 1 {
		t.Fatalf("codes = %v, want one 200 and one 401", codes)
	}
}

func TestAuthFlow_ExpirySignal(t *testing.T) {
	app := setupAuthTestRouter(t)
	access, refresh := register(t, app, "a@x.com")

	app.advance(15*time.Minute + time.Millisecond)

	w := app.do(http.MethodGet, "/auth/me", "", access)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if !strings.Contains(w.Header().Get("WWW-Authenticate"), "token_expired") {
		t.Fatalf("missing expiry challenge: %q", w.Header().Get("WWW-Authenticate"))
	}

	tampered := *access
	tampered.Value = access.Value[:len(access.Value)-4] + "AAAA"
	w = app.do(http.MethodGet, "/auth/me", "", &tampered)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("tampered status = %d, want 401", w.Code)
	}
	if strings.Contains(w.Header().Get("WWW-Authenticate"), "token_expired") {
		t.Fatalf("tampered token must not look expired")
	}

	w = app.do(http.MethodPost, "/auth/refresh", "", refresh)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh after expiry = %d", w.Code)
	}
	access2, _ := sessionCookies(t, w)

	w = app.do(http.MethodGet, "/auth/me", "", access2)
	if w.Code != http.StatusOK {
		t.Fatalf("me after refresh = %d", w.Code)
	}
}

func TestAuthFlow_LogoutIsIdempotent(t *testing.T) {
	app := setupAuthTestRouter(t)
	_, refresh := register(t, app, "a@x.com")

	for _, cks := range [][]*http.Cookie{nil, {refresh}, {refresh}} {
		w := app.do(http.MethodPost, "/auth/logout", "", cks...)
		if w.Code != http.StatusOK {
			t.Fatalf("logout status = %d", w.Code)
		}
		cleared := 0
		for _, c := range w.Result().Cookies() {
			if c.MaxAge < 0 {
				cleared++
			}
		}
		if cleared != 2 {
			t.Fatalf("expected both cookies cleared, got %v", w.Header().Values("Set-Cookie"))
		}
	}

	w := app.do(http.MethodPost, "/auth/refresh", "", refresh)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout = %d, want 401", w.Code)
	}
}

func TestAdmin_RevokeSessions(t *testing.T) {
	app := setupAuthTestRouter(t)
	userAccess, userRefresh := register(t, app, "a@x.com")

	w := app.do(http.MethodPost, "/auth/login", `{"email":"admin@example.com","password":"admin-password"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("admin login = %d body=%s", w.Code, w.Body.String())
	}
	adminAccess, _ := sessionCookies(t, w)

	me := app.do(http.MethodGet, "/auth/me", "", userAccess)
	var body struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(me.Body.Bytes(), &body); err != nil {
		t.Fatalf("me body: %v", err)
	}

	path := "/admin/users/" + body.User.ID + "/sessions/revoke"

	if w := app.do(http.MethodPost, path, "", userAccess); w.Code != http.StatusForbidden {
		t.Fatalf("non-admin status = %d, want 403", w.Code)
	}

	w = app.do(http.MethodPost, path, "", adminAccess)
	if w.Code != http.StatusOK {
		t.Fatalf("revoke status = %d body=%s", w.Code, w.Body.String())
	}

	if w := app.do(http.MethodPost, "/auth/refresh", "", userRefresh); w.Code != http.StatusUnauthorized {
		t.Fatalf("revoked refresh token still works: %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	app := setupAuthTestRouter(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		if w := app.do(http.MethodGet, path, ""); w.Code != http.StatusOK {
			t.Fatalf("%s = %d", path, w.Code)
		}
	}
}

func TestAuthFlow_LogoutWithStrayBodyStillClears(t *testing.T) {
	app := setupAuthTestRouter(t)
	_, refresh := register(t, app, "a@x.com")

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", strings.NewReader("bye"))
	req.Header.Set("Content-Type", "text/plain")
	req.AddCookie(refresh)

	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("logout status = %d body=%s", w.Code, w.Body.String())
	}
	cleared := 0
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			cleared++
		}
	}
	if cleared != 2 {
		t.Fatalf("expected both cookies cleared, got %v", w.Header().Values("Set-Cookie"))
	}
	if app.tokens.Len() != 0 {
		t.Fatalf("refresh rows = %d, want 0", app.tokens.Len())
	}
}

func TestAuthFlow_RegisterStillRequiresJSON(t *testing.T) {
	app := setupAuthTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader("email=a@x.com"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415", w.Code)
	}
}

func TestAuthFlow_MultibytePasswordOverLimitIs400(t *testing.T) {
	app := setupAuthTestRouter(t)

	// 72 characters pass the validator but are 144 bytes
	body := `{"email":"a@x.com","password":"` + strings.Repeat("é", 72) + `","name":"A"}`
	w := app.do(http.MethodPost, "/auth/register", body)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if app.users.Count() != 1 {
		t.Fatalf("only the seeded admin should exist, got %d users", app.users.Count())
	}
	if len(w.Result().Cookies()) != 0 {
		t.Fatalf("no cookies expected on rejected register")
	}
}

func TestNewRouter_LeavesGinModeAlone(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := testConfigAuth()
	cfg.Env = "prod"
	_ = apphttp.NewRouter(apphttp.Deps{
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: cfg,
	})

	if gin.Mode() != gin.TestMode {
		t.Fatalf("gin mode = %q, want %q", gin.Mode(), gin.TestMode)
	}
}
