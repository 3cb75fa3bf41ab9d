// Package client is the Go SDK for the dashboard API. It keeps the session in
// a TokenStore, attaches the bearer token to every request and refreshes once
// on a 401 before giving up and tearing the local session down.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const contentTypeJSON = "application/json"

type Client struct {
	BaseURL string
	HTTP    *http.Client
	Store   TokenStore

	// refreshMu serializes refreshes so concurrent 401s rotate the pair once.
	refreshMu sync.Mutex
}

func New(baseURL string, store TokenStore) *Client {
	if store == nil {
		store = NewMemoryStore(nil)
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Store:   store,
	}
}

// Do performs an authenticated JSON request. A 401 triggers exactly one
// refresh and retry; if the refresh fails the local session is cleared and
// ErrSessionExpired returned.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	used := c.Store.Get(KeyAccessToken)
	status, err := c.send(ctx, method, path, used, in, out)
	if status != http.StatusUnauthorized {
		return err
	}

	if err := c.refresh(ctx, used); err != nil {
		_ = c.Store.Remove(SessionKeys...)
		return ErrSessionExpired
	}
	status, err = c.send(ctx, method, path, c.Store.Get(KeyAccessToken), in, out)
	if status == http.StatusUnauthorized {
		_ = c.Store.Remove(SessionKeys...)
		return ErrSessionExpired
	}
	return err
}

// doPublic performs an unauthenticated JSON request.
func (c *Client) doPublic(ctx context.Context, method, path string, in, out any) error {
	_, err := c.send(ctx, method, path, "", in, out)
	return err
}

func (c *Client) send(ctx context.Context, method, path, token string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	res, err := hc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return res.StatusCode, decodeAPIError(res)
	}
	if out == nil || res.StatusCode == http.StatusNoContent {
		return res.StatusCode, nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return res.StatusCode, fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return res.StatusCode, nil
}

func decodeAPIError(res *http.Response) error {
	var body struct {
		Error  string            `json:"error"`
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	}
	_ = json.NewDecoder(io.LimitReader(res.Body, 64<<10)).Decode(&body)
	return &APIError{Status: res.StatusCode, Message: body.Error, Code: body.Code, Fields: body.Fields}
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// refresh rotates the pair unless another goroutine already replaced the
// access token that just failed.
func (c *Client) refresh(ctx context.Context, failedAccess string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if cur := c.Store.Get(KeyAccessToken); cur != "" && cur != failedAccess {
		return nil
	}
	rt := c.Store.Get(KeyRefreshToken)
	if rt == "" {
		return ErrNoSession
	}
	var pair tokenPair
	if err := c.doPublic(ctx, http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": rt}, &pair); err != nil {
		return err
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return errors.New("refresh: empty token pair")
	}
	return c.Store.Set(map[string]string{
		KeyAccessToken:  pair.AccessToken,
		KeyRefreshToken: pair.RefreshToken,
	})
}
