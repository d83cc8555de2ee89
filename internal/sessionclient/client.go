// Package sessionclient is an HTTP client for the recipehub API that hides
// access-token expiry from its callers. Credentials live in a cookie jar; when
// a response carries the token_expired challenge the client refreshes once
// and replays the request once.
package sessionclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/recipehub/internal/auth"
	"golang.org/x/sync/singleflight"
)

// ErrLoginRequired means the session could not be renewed. The caller has to
// log in again; the client never retries past this point.
var ErrLoginRequired = errors.New("login required")

const (
	refreshPath      = "/auth/refresh"
	refreshCookie    = "refreshToken"
	expiredChallenge = `error="token_expired"`
)

// APIError is a non-2xx answer from one of the helper calls.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("recipehub: %d %s: %s", e.Status, e.Code, e.Message)
}

type Option func(*Client)

// WithCoalescing makes concurrent callers that hit expiry with the same
// refresh cookie share one refresh call. Off by default: every caller then
// refreshes on its own and all but the first lose the race.
func WithCoalescing() Option {
	return func(c *Client) { c.coalesce = true }
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

type Client struct {
	base     *url.URL
	http     *http.Client
	coalesce bool
	group    singleflight.Group
	log      *slog.Logger

	mu    sync.Mutex
	state auth.State
}

// New decorates hc. A nil hc gets a default client; a client without a
// cookie jar is copied and given one, since the session lives in cookies.
func New(baseURL string, hc *http.Client, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		cp := *hc
		cp.Jar = jar
		hc = &cp
	}

	c := &Client{
		base:  base,
		http:  hc,
		log:   slog.New(slog.DiscardHandler),
		state: auth.Anonymous,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Client) State() auth.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s auth.State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// URL resolves path against the base URL.
func (c *Client) URL(path string) string {
	return c.base.JoinPath(path).String()
}

// Do sends req with the session cookies attached. An expired access token
// costs at most one refresh and one replay; a failed refresh returns
// ErrLoginRequired.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := bufferBody(req); err != nil {
		return nil, err
	}

	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	if !IsExpired(resp) {
		return resp, nil
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if err := c.refresh(req.Context()); err != nil {
		c.setState(auth.Anonymous)
		c.log.InfoContext(req.Context(), "session_refresh_failed", "err", err)
		return nil, fmt.Errorf("%w: %v", ErrLoginRequired, err)
	}

	return c.send(req)
}

// IsExpired reports whether resp is the expiry challenge, as opposed to any
// other 401.
func IsExpired(resp *http.Response) bool {
	if resp.StatusCode != http.StatusUnauthorized {
		return false
	}
	for _, v := range resp.Header.Values("WWW-Authenticate") {
		if strings.Contains(v, expiredChallenge) {
			return true
		}
	}
	return false
}

// send works on a clone: http.Client writes jar cookies into the request it
// is given, and a replay must pick up the rotated ones.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		out.Body = body
	}
	return c.http.Do(out)
}

func (c *Client) refresh(ctx context.Context) error {
	if !c.coalesce {
		return c.doRefresh(ctx)
	}

	_, err, _ := c.group.Do(c.refreshKey(), func() (any, error) {
		return nil, c.doRefresh(ctx)
	})
	return err
}

func (c *Client) refreshKey() string {
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == refreshCookie {
			return ck.Value
		}
	}
	return ""
}

func (c *Client) doRefresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(refreshPath), nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	c.setState(auth.Authenticated)
	return nil
}

func bufferBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}

	b, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return fmt.Errorf("buffer request body: %w", err)
	}

	req.ContentLength = int64(len(b))
	req.Body = io.NopCloser(bytes.NewReader(b))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(b)), nil
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// Jar exposes the cookie jar holding the session.
func (c *Client) Jar() http.CookieJar {
	return c.http.Jar
}
