package sessionclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/geocoder89/recipehub/internal/auth"
	"github.com/geocoder89/recipehub/internal/domain/user"
)

type RegisterParams struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Name     string   `json:"name"`
	Roles    []string `json:"roles,omitempty"`
}

type loginParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) Register(ctx context.Context, p RegisterParams) error {
	if err := c.postJSON(ctx, "/auth/register", p, nil); err != nil {
		return err
	}
	c.setState(auth.Authenticated)
	return nil
}

func (c *Client) Login(ctx context.Context, email, password string) error {
	if err := c.postJSON(ctx, "/auth/login", loginParams{Email: email, Password: password}, nil); err != nil {
		return err
	}
	c.setState(auth.Authenticated)
	return nil
}

// Logout always leaves the client anonymous, even when the call fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.setState(auth.Anonymous)
	return c.postJSON(ctx, "/auth/logout", nil, nil)
}

func (c *Client) Me(ctx context.Context) (user.User, error) {
	var out struct {
		Message string    `json:"message"`
		User    user.User `json:"user"`
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL("/auth/me"), nil)
	if err != nil {
		return user.User{}, err
	}

	if err := c.doJSON(req, &out); err != nil {
		return user.User{}, err
	}
	return out.User, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(path), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
