package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// EmailRelay sends lead notifications through the EmailJS REST API.
type EmailRelay struct {
	BaseURL    string
	ServiceID  string
	TemplateID string
	PublicKey  string
	AccessKey  string
	HTTP       *http.Client
}

func NewEmailRelay(baseURL, serviceID, templateID, publicKey, accessKey string) *EmailRelay {
	return &EmailRelay{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ServiceID:  serviceID,
		TemplateID: templateID,
		PublicKey:  publicKey,
		AccessKey:  accessKey,
		HTTP:       &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured is false when the relay has no service/template to send with.
func (r *EmailRelay) Configured() bool {
	return r != nil && r.ServiceID != "" && r.TemplateID != "" && r.PublicKey != ""
}

var ErrRelayNotConfigured = errors.New("leads: email relay not configured")

type sendRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

func (r *EmailRelay) Send(ctx context.Context, l Lead) error {
	if !r.Configured() {
		return ErrRelayNotConfigured
	}
	b, err := json.Marshal(sendRequest{
		ServiceID:   r.ServiceID,
		TemplateID:  r.TemplateID,
		UserID:      r.PublicKey,
		AccessToken: r.AccessKey,
		TemplateParams: map[string]string{
			"from_name":  l.Name,
			"from_email": l.Email,
			"reply_to":   l.Email,
			"company":    l.Company,
			"phone":      l.Phone,
			"message":    l.Message,
			"source":     l.Source,
		},
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/email/send", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	hc := r.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	res, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("leads: email relay: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("leads: email relay: status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
