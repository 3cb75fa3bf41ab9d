// Package calendar reads and books events on the user's hosted calendar so an
// agent can check availability and schedule appointments.
package calendar

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

// TokenHeader carries the user's OAuth access token from the dashboard.
const TokenHeader = "X-Calendar-Token"

var (
	ErrMissingToken = errors.New("calendar: oauth token required")
	ErrInvalidEvent = errors.New("calendar: event needs a summary and a start before its end")
)

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("calendar: status %d: %s", e.Status, e.Body)
}

// Client talks to the calendar REST API. Calls authenticate with the caller's
// OAuth token; APIKey is only appended as a quota key when set.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

type Calendar struct {
	ID       string `json:"id"`
	Summary  string `json:"summary"`
	Primary  bool   `json:"primary,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type EventTime struct {
	DateTime time.Time `json:"dateTime"`
	TimeZone string    `json:"timeZone,omitempty"`
}

type Attendee struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

type Event struct {
	ID          string     `json:"id,omitempty"`
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Start       EventTime  `json:"start"`
	End         EventTime  `json:"end"`
	Attendees   []Attendee `json:"attendees,omitempty"`
	HTMLLink    string     `json:"htmlLink,omitempty"`
}

func (e Event) Validate() error {
	if strings.TrimSpace(e.Summary) == "" || e.Start.DateTime.IsZero() || !e.End.DateTime.After(e.Start.DateTime) {
		return ErrInvalidEvent
	}
	return nil
}

type ListEventsParams struct {
	CalendarID string
	From       time.Time
	To         time.Time
	MaxResults int
}

func (c *Client) ListCalendars(ctx context.Context, token string) ([]Calendar, error) {
	var out struct {
		Items []Calendar `json:"items"`
	}
	if err := c.do(ctx, token, http.MethodGet, "/users/me/calendarList", nil, nil, &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []Calendar{}
	}
	return out.Items, nil
}

// ListEvents expands recurring events and orders them by start time.
func (c *Client) ListEvents(ctx context.Context, token string, p ListEventsParams) ([]Event, error) {
	q := url.Values{}
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")
	if !p.From.IsZero() {
		q.Set("timeMin", p.From.UTC().Format(time.RFC3339))
	}
	if !p.To.IsZero() {
		q.Set("timeMax", p.To.UTC().Format(time.RFC3339))
	}
	if p.MaxResults > 0 {
		q.Set("maxResults", strconv.Itoa(p.MaxResults))
	}
	var out struct {
		Items []Event `json:"items"`
	}
	if err := c.do(ctx, token, http.MethodGet, eventsPath(p.CalendarID), q, nil, &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []Event{}
	}
	return out.Items, nil
}

func (c *Client) CreateEvent(ctx context.Context, token, calendarID string, ev Event) (Event, error) {
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	var out Event
	if err := c.do(ctx, token, http.MethodPost, eventsPath(calendarID), nil, ev, &out); err != nil {
		return Event{}, err
	}
	return out, nil
}

func eventsPath(calendarID string) string {
	if calendarID == "" {
		calendarID = "primary"
	}
	return "/calendars/" + url.PathEscape(calendarID) + "/events"
}

func (c *Client) do(ctx context.Context, token, method, path string, q url.Values, in, out any) error {
	if token == "" {
		return ErrMissingToken
	}
	if c.APIKey != "" {
		if q == nil {
			q = url.Values{}
		}
		q.Set("key", c.APIKey)
	}
	u := c.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	hc := c.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	res, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("calendar: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &APIError{Status: res.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
