// Package session is the typed per-user state store: token pair, cached user
// profile and the denormalized agent copy. It replaces ad-hoc key lookups with
// one set of accessors, so the assistant-ID fallback order lives in one place.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Field keys. They match the keys the dashboard clients persist locally.
const (
	KeyAccessToken      = "accessToken"
	KeyRefreshToken     = "refreshToken"
	KeyUser             = "user"
	KeyAgentData        = "agentData"
	KeyAssistantID      = "vapiAssistantId"
	KeyWhatsAppSettings = "whatsappSettings"
)

// LogoutKeys are removed by Clear. Settings copies survive a logout.
var LogoutKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser, KeyAgentData}

var ErrNotFound = errors.New("session: not found")

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

type AgentData struct {
	AgentID             string `json:"agentId"`
	AgentName           string `json:"agentName,omitempty"`
	AgentVoice          string `json:"agentVoice,omitempty"`
	FirstMessage        string `json:"firstMessage,omitempty"`
	SystemPrompt        string `json:"systemPrompt,omitempty"`
	VapiAssistantID     string `json:"vapiAssistantId,omitempty"`
	AssignedPhoneNumber string `json:"assignedPhoneNumber,omitempty"`
	WhatsappNumber      string `json:"whatsappNumber,omitempty"`
	Status              string `json:"status,omitempty"`
}

type Data struct {
	AccessToken  string
	RefreshToken string
	User         *User
	Agent        *AgentData
}

// kv is a per-user hash. Redis and memory implement it.
type kv interface {
	set(ctx context.Context, userID string, fields map[string]string, ttl time.Duration) error
	getAll(ctx context.Context, userID string) (map[string]string, error)
	del(ctx context.Context, userID string, fields ...string) error
}

type Store struct {
	kv  kv
	ttl time.Duration
}

// Save writes the token pair and user profile. Agent data is left untouched.
func (s *Store) Save(ctx context.Context, userID string, d Data) error {
	if userID == "" {
		return errors.New("session: user id required")
	}
	fields := map[string]string{
		KeyAccessToken:  d.AccessToken,
		KeyRefreshToken: d.RefreshToken,
	}
	if d.User != nil {
		b, err := json.Marshal(d.User)
		if err != nil {
			return err
		}
		fields[KeyUser] = string(b)
	}
	return s.kv.set(ctx, userID, fields, s.ttl)
}

// Get returns ErrNotFound when no token pair is stored for the user.
func (s *Store) Get(ctx context.Context, userID string) (Data, error) {
	m, err := s.kv.getAll(ctx, userID)
	if err != nil {
		return Data{}, err
	}
	if m[KeyAccessToken] == "" && m[KeyRefreshToken] == "" {
		return Data{}, ErrNotFound
	}
	d := Data{AccessToken: m[KeyAccessToken], RefreshToken: m[KeyRefreshToken]}
	if raw := m[KeyUser]; raw != "" {
		var u User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return Data{}, fmt.Errorf("session: decode user: %w", err)
		}
		d.User = &u
	}
	if raw := m[KeyAgentData]; raw != "" {
		var a AgentData
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return Data{}, fmt.Errorf("session: decode agent: %w", err)
		}
		d.Agent = &a
	}
	return d, nil
}

func (s *Store) Clear(ctx context.Context, userID string) error {
	return s.kv.del(ctx, userID, LogoutKeys...)
}

// SetAgent stores the agent copy and the standalone assistant id key.
func (s *Store) SetAgent(ctx context.Context, userID string, a AgentData) error {
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	fields := map[string]string{KeyAgentData: string(b)}
	if a.VapiAssistantID != "" {
		fields[KeyAssistantID] = a.VapiAssistantID
	}
	return s.kv.set(ctx, userID, fields, s.ttl)
}

// SetWhatsAppSettings stores an opaque JSON copy of the WhatsApp settings panel.
func (s *Store) SetWhatsAppSettings(ctx context.Context, userID string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.kv.set(ctx, userID, map[string]string{KeyWhatsAppSettings: string(b)}, s.ttl)
}

// ResolveAssistantID returns the external assistant id for the user's agent.
// Order: agentData.vapiAssistantId, then the vapiAssistantId key.
func (s *Store) ResolveAssistantID(ctx context.Context, userID string) (string, bool, error) {
	m, err := s.kv.getAll(ctx, userID)
	if err != nil {
		return "", false, err
	}
	if raw := m[KeyAgentData]; raw != "" {
		var a AgentData
		if err := json.Unmarshal([]byte(raw), &a); err == nil && a.VapiAssistantID != "" {
			return a.VapiAssistantID, true, nil
		}
	}
	if id := m[KeyAssistantID]; id != "" {
		return id, true, nil
	}
	return "", false, nil
}

// Fields returns the raw stored fields. Used by tests and the debug endpoint.
func (s *Store) Fields(ctx context.Context, userID string) (map[string]string, error) {
	return s.kv.getAll(ctx, userID)
}
