// Package voiceai is a thin REST client for the hosted voice-AI assistant API:
// assistants, call history, text chat and browser (web) calls.
package voiceai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIError is a non-2xx answer from the provider.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("voiceai: status %d: %s", e.Status, e.Body)
}

var ErrNoControlURL = errors.New("voiceai: call has no control url")

type Client struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		APIKey:  apiKey,
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, rawURL string, in, out any) error {
	if c.APIKey == "" {
		return errors.New("voiceai: missing api key")
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	hc := c.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 20 * time.Second}
	}
	res, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("voiceai: %s %s: %w", method, req.URL.Path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &APIError{Status: res.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("voiceai: decode %s: %w", req.URL.Path, err)
	}
	return nil
}

func (c *Client) url(path string, q url.Values) string {
	u := c.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

/* ===================== ASSISTANTS ===================== */

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Model struct {
	Provider    string    `json:"provider,omitempty"`
	Model       string    `json:"model,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	Messages    []Message `json:"messages,omitempty"`
}

type Voice struct {
	Provider string `json:"provider,omitempty"`
	VoiceID  string `json:"voiceId,omitempty"`
}

// Assistant is both the create payload and the provider's answer.
type Assistant struct {
	ID           string            `json:"id,omitempty"`
	Name         string            `json:"name,omitempty"`
	FirstMessage string            `json:"firstMessage,omitempty"`
	Model        *Model            `json:"model,omitempty"`
	Voice        *Voice            `json:"voice,omitempty"`
	ServerURL    string            `json:"serverUrl,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// SystemPrompt returns the first system message, if any.
func (a Assistant) SystemPrompt() string {
	if a.Model == nil {
		return ""
	}
	for _, m := range a.Model.Messages {
		if m.Role == "system" {
			return m.Content
		}
	}
	return ""
}

func (c *Client) CreateAssistant(ctx context.Context, a Assistant) (Assistant, error) {
	var out Assistant
	if err := c.do(ctx, http.MethodPost, c.url("/assistant", nil), a, &out); err != nil {
		return Assistant{}, err
	}
	if out.ID == "" {
		return Assistant{}, errors.New("voiceai: create assistant: empty id")
	}
	return out, nil
}

func (c *Client) GetAssistant(ctx context.Context, id string) (Assistant, error) {
	var out Assistant
	err := c.do(ctx, http.MethodGet, c.url("/assistant/"+url.PathEscape(id), nil), nil, &out)
	return out, err
}

// UpdateAssistant PATCHes only the non-empty fields of patch.
func (c *Client) UpdateAssistant(ctx context.Context, id string, patch Assistant) (Assistant, error) {
	var out Assistant
	err := c.do(ctx, http.MethodPatch, c.url("/assistant/"+url.PathEscape(id), nil), patch, &out)
	return out, err
}

func (c *Client) DeleteAssistant(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, c.url("/assistant/"+url.PathEscape(id), nil), nil, nil)
}

/* ===================== CHAT ===================== */

type ChatReply struct {
	ID     string `json:"id"`
	Output string `json:"output"`
}

// Chat sends one text turn. previousChatID continues an earlier conversation.
func (c *Client) Chat(ctx context.Context, assistantID, input, previousChatID string) (ChatReply, error) {
	in := map[string]string{"assistantId": assistantID, "input": input}
	if previousChatID != "" {
		in["previousChatId"] = previousChatID
	}
	var raw struct {
		ID     string    `json:"id"`
		Output []Message `json:"output"`
	}
	if err := c.do(ctx, http.MethodPost, c.url("/chat", nil), in, &raw); err != nil {
		return ChatReply{}, err
	}
	var parts []string
	for _, m := range raw.Output {
		if m.Role == "assistant" && m.Content != "" {
			parts = append(parts, m.Content)
		}
	}
	return ChatReply{ID: raw.ID, Output: strings.Join(parts, "\n")}, nil
}

/* ===================== WEB CALLS ===================== */

type WebCall struct {
	ID         string `json:"id"`
	WebCallURL string `json:"webCallUrl"`
	ControlURL string `json:"controlUrl,omitempty"`
}

func (c *Client) StartWebCall(ctx context.Context, assistantID string) (WebCall, error) {
	var raw struct {
		ID         string `json:"id"`
		WebCallURL string `json:"webCallUrl"`
		Monitor    struct {
			ControlURL string `json:"controlUrl"`
		} `json:"monitor"`
	}
	in := map[string]string{"assistantId": assistantID}
	if err := c.do(ctx, http.MethodPost, c.url("/call/web", nil), in, &raw); err != nil {
		return WebCall{}, err
	}
	return WebCall{ID: raw.ID, WebCallURL: raw.WebCallURL, ControlURL: raw.Monitor.ControlURL}, nil
}

// EndCall asks the provider to hang up a live call through its control URL.
func (c *Client) EndCall(ctx context.Context, call WebCall) error {
	if call.ControlURL == "" {
		return ErrNoControlURL
	}
	return c.do(ctx, http.MethodPost, call.ControlURL, map[string]string{"type": "end-call"}, nil)
}

/* ===================== CALL HISTORY ===================== */

type ListCallsParams struct {
	AssistantID string
	Limit       int
}

func (c *Client) ListCalls(ctx context.Context, p ListCallsParams) ([]RawCall, error) {
	q := url.Values{}
	if p.AssistantID != "" {
		q.Set("assistantId", p.AssistantID)
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	var out []RawCall
	if err := c.do(ctx, http.MethodGet, c.url("/call", q), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
