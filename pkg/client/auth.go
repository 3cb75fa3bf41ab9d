package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

type User struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FirstName     string `json:"firstName,omitempty"`
	LastName      string `json:"lastName,omitempty"`
	Company       string `json:"company,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Plan          string `json:"plan,omitempty"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"emailVerified"`
}

type LoginResult struct {
	User User   `json:"user"`
	Next string `json:"next"`
}

// Login signs in and stores accessToken, refreshToken and user. A failed
// login leaves the store untouched.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var res struct {
		User   User      `json:"user"`
		Tokens tokenPair `json:"tokens"`
		Next   string    `json:"next"`
	}
	in := map[string]string{"email": email, "password": password}
	if err := c.doPublic(ctx, http.MethodPost, "/api/auth/login", in, &res); err != nil {
		return LoginResult{}, err
	}
	if err := c.saveSession(res.Tokens, &res.User); err != nil {
		return LoginResult{}, err
	}
	return LoginResult{User: res.User, Next: res.Next}, nil
}

// Logout tells the server to drop the session, then clears the local copy
// regardless of the server's answer. It returns the login route.
func (c *Client) Logout(ctx context.Context) (string, error) {
	next := "/login"
	if c.Store.Get(KeyAccessToken) != "" {
		var res struct {
			Next string `json:"next"`
		}
		if err := c.Do(ctx, http.MethodPost, "/api/auth/logout", nil, &res); err == nil && res.Next != "" {
			next = res.Next
		}
	}
	if err := c.Store.Remove(SessionKeys...); err != nil {
		return "", err
	}
	return next, nil
}

// Restore probes the server with the stored token. On any auth failure the
// local session is invalidated.
func (c *Client) Restore(ctx context.Context) (User, error) {
	if c.Store.Get(KeyAccessToken) == "" {
		return User{}, ErrNoSession
	}
	var res struct {
		User      User            `json:"user"`
		AgentData json.RawMessage `json:"agentData"`
	}
	err := c.Do(ctx, http.MethodGet, "/api/auth/me", nil, &res)
	if err != nil {
		var apiErr *APIError
		if errors.Is(err, ErrSessionExpired) || (errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized) {
			_ = c.Store.Remove(SessionKeys...)
			return User{}, ErrSessionExpired
		}
		return User{}, err
	}
	values := map[string]string{}
	if b, err := json.Marshal(res.User); err == nil {
		values[KeyUser] = string(b)
	}
	if len(res.AgentData) > 0 && string(res.AgentData) != "null" {
		values[KeyAgentData] = string(res.AgentData)
	}
	if err := c.Store.Set(values); err != nil {
		return User{}, err
	}
	return res.User, nil
}

// CurrentUser returns the locally cached user without a network call.
func (c *Client) CurrentUser() (User, bool) {
	raw := c.Store.Get(KeyUser)
	if raw == "" {
		return User{}, false
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return User{}, false
	}
	return u, true
}

type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Company         string `json:"company"`
	Phone           string `json:"phone"`
	Plan            string `json:"plan"`
}

type RegisterResult struct {
	Success              bool   `json:"success"`
	RequiresVerification bool   `json:"requiresVerification"`
	UserID               string `json:"userId"`
	OnboardingState      string `json:"onboardingState"`
}

// Register creates the account. When the server signs the user in right away
// the token pair is stored like a login.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (RegisterResult, error) {
	var res struct {
		RegisterResult
		Tokens *tokenPair `json:"tokens"`
		User   *User      `json:"user"`
	}
	if err := c.doPublic(ctx, http.MethodPost, "/api/auth/register", req, &res); err != nil {
		return RegisterResult{}, err
	}
	if res.Tokens != nil {
		if err := c.saveSession(*res.Tokens, res.User); err != nil {
			return RegisterResult{}, err
		}
	}
	return res.RegisterResult, nil
}

func (c *Client) saveSession(p tokenPair, u *User) error {
	values := map[string]string{
		KeyAccessToken:  p.AccessToken,
		KeyRefreshToken: p.RefreshToken,
	}
	if u != nil {
		b, err := json.Marshal(u)
		if err != nil {
			return err
		}
		values[KeyUser] = string(b)
	}
	return c.Store.Set(values)
}
