// Package payment captures hosted-checkout orders for paid plans and marks
// the client as paid once the captured amount matches the plan price.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypal: status %d: %s", e.Status, e.Body)
}

// PayPal is an Orders v2 client authenticated with client credentials.
type PayPal struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	HTTP         *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
	now     func() time.Time
}

func NewPayPal(baseURL, clientID, clientSecret string) *PayPal {
	return &PayPal{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		HTTP:         &http.Client{Timeout: 20 * time.Second},
		now:          time.Now,
	}
}

type Amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type OrderRequest struct {
	ReferenceID string
	CustomID    string
	Description string
	Amount      Amount
	ReturnURL   string
	CancelURL   string
}

type Order struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	ApproveURL string `json:"approveUrl,omitempty"`
}

// Capture is the flattened result of a capture call.
type Capture struct {
	OrderID   string
	Status    string
	CaptureID string
	Amount    Amount
	CustomID  string
}

const StatusCompleted = "COMPLETED"

func (p *PayPal) CreateOrder(ctx context.Context, in OrderRequest) (Order, error) {
	unit := map[string]any{
		"reference_id": in.ReferenceID,
		"custom_id":    in.CustomID,
		"description":  in.Description,
		"amount":       in.Amount,
	}
	body := map[string]any{
		"intent":         "CAPTURE",
		"purchase_units": []any{unit},
	}
	if in.ReturnURL != "" || in.CancelURL != "" {
		body["application_context"] = map[string]string{
			"return_url":  in.ReturnURL,
			"cancel_url":  in.CancelURL,
			"user_action": "PAY_NOW",
		}
	}
	var raw struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Links  []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := p.do(ctx, http.MethodPost, "/v2/checkout/orders", "", body, &raw); err != nil {
		return Order{}, err
	}
	o := Order{ID: raw.ID, Status: raw.Status}
	for _, l := range raw.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			o.ApproveURL = l.Href
		}
	}
	return o, nil
}

// CaptureOrder captures an approved order. The order id doubles as the
// idempotency key so a retried capture is answered from PayPal's cache.
func (p *PayPal) CaptureOrder(ctx context.Context, orderID string) (Capture, error) {
	var raw struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		PurchaseUnits []struct {
			CustomID string `json:"custom_id"`
			Payments struct {
				Captures []struct {
					ID       string `json:"id"`
					Status   string `json:"status"`
					Amount   Amount `json:"amount"`
					CustomID string `json:"custom_id"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}
	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"
	if err := p.do(ctx, http.MethodPost, path, "capture-"+orderID, struct{}{}, &raw); err != nil {
		return Capture{}, err
	}
	c := Capture{OrderID: raw.ID, Status: raw.Status}
	for _, pu := range raw.PurchaseUnits {
		for _, cp := range pu.Payments.Captures {
			c.CaptureID = cp.ID
			c.Amount = cp.Amount
			c.CustomID = cp.CustomID
			if c.CustomID == "" {
				c.CustomID = pu.CustomID
			}
			return c, nil
		}
	}
	return c, nil
}

func (p *PayPal) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.clock()
	if p.token != "" && now.Before(p.expires) {
		return p.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.ClientID, p.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	res, err := p.client().Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal: token: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", &APIError{Status: res.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("paypal: decode token: %w", err)
	}
	p.token = out.AccessToken
	// refresh a minute early
	p.expires = now.Add(time.Duration(out.ExpiresIn)*time.Second - time.Minute)
	return p.token, nil
}

func (p *PayPal) do(ctx context.Context, method, path, requestID string, in, out any) error {
	token, err := p.accessToken(ctx)
	if err != nil {
		return err
	}
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, p.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	if requestID != "" {
		req.Header.Set("PayPal-Request-Id", requestID)
	}

	res, err := p.client().Do(req)
	if err != nil {
		return fmt.Errorf("paypal: %s %s: %w", method, path, err)
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

func (p *PayPal) client() *http.Client {
	if p.HTTP != nil {
		return p.HTTP
	}
	return &http.Client{Timeout: 20 * time.Second}
}

func (p *PayPal) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}
