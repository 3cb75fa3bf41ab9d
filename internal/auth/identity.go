package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"voiceagent-platform/pkg/logger"
)

// IdentityBackend talks to a hosted identity provider over its REST API
// (accounts:signInWithPassword, accounts:signUp, accounts:sendOobCode).
type IdentityBackend struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewIdentityBackend(baseURL, apiKey string) *IdentityBackend {
	return &IdentityBackend{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (b *IdentityBackend) Name() string { return "identity" }

type identityAccount struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
}

type identityErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (b *IdentityBackend) SignIn(ctx context.Context, email, password string) (Identity, error) {
	var acc identityAccount
	err := b.call(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &acc)
	if err != nil {
		return Identity{}, err
	}
	verified, err := b.emailVerified(ctx, acc.IDToken)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: acc.LocalID, Email: acc.Email, EmailVerified: verified}, nil
}

func (b *IdentityBackend) Register(ctx context.Context, email, password string) (Identity, bool, error) {
	var acc identityAccount
	err := b.call(ctx, "accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &acc)
	if err != nil {
		return Identity{}, false, err
	}
	// the account exists either way; a failed mail can be re-sent by the user
	if err := b.sendVerify(ctx, acc.IDToken); err != nil {
		logger.From(ctx).Warn("verification mail failed", "user_id", acc.LocalID, "error", err)
	}
	return Identity{UserID: acc.LocalID, Email: acc.Email}, true, nil
}

func (b *IdentityBackend) SendPasswordReset(ctx context.Context, email string) error {
	return b.call(ctx, "accounts:sendOobCode", map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}, nil)
}

// ResendVerification signs in to obtain an id token, then requests the mail.
func (b *IdentityBackend) ResendVerification(ctx context.Context, email, password string) error {
	var acc identityAccount
	err := b.call(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &acc)
	if err != nil {
		return err
	}
	return b.sendVerify(ctx, acc.IDToken)
}

func (b *IdentityBackend) sendVerify(ctx context.Context, idToken string) error {
	return b.call(ctx, "accounts:sendOobCode", map[string]any{
		"requestType": "VERIFY_EMAIL",
		"idToken":     idToken,
	}, nil)
}

func (b *IdentityBackend) emailVerified(ctx context.Context, idToken string) (bool, error) {
	var out struct {
		Users []struct {
			EmailVerified bool `json:"emailVerified"`
		} `json:"users"`
	}
	if err := b.call(ctx, "accounts:lookup", map[string]any{"idToken": idToken}, &out); err != nil {
		return false, err
	}
	if len(out.Users) == 0 {
		return false, nil
	}
	return out.Users[0].EmailVerified, nil
}

func (b *IdentityBackend) call(ctx context.Context, method string, in any, out any) error {
	if b.APIKey == "" {
		return errors.New("identity: missing api key")
	}
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	u := b.BaseURL + "/" + method + "?key=" + url.QueryEscape(b.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	hc := b.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	res, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("identity: %s: %w", method, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		var eb identityErrorBody
		if err := json.NewDecoder(res.Body).Decode(&eb); err != nil || eb.Error.Message == "" {
			return NewError(CodeGeneric, fmt.Errorf("identity: %s: status %d", method, res.StatusCode))
		}
		return NewError(MapProviderCode(eb.Error.Message), fmt.Errorf("identity: %s: %s", method, eb.Error.Message))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("identity: %s: decode: %w", method, err)
	}
	return nil
}
