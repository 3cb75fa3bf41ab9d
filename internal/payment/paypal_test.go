package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newPayPalServer(t *testing.T, tokenCalls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			atomic.AddInt32(tokenCalls, 1)
			user, pass, ok := r.BasicAuth()
			if !ok || user != "cid" || pass != "secret" {
				t.Errorf("unexpected basic auth %q %q", user, pass)
			}
			if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
				t.Errorf("unexpected grant")
			}
			_, _ = w.Write([]byte(`{"access_token":"A21","expires_in":32400}`))
		case "/v2/checkout/orders":
			if r.Header.Get("Authorization") != "Bearer A21" {
				t.Errorf("missing bearer")
			}
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["intent"] != "CAPTURE" {
				t.Errorf("unexpected intent %v", body["intent"])
			}
			_, _ = w.Write([]byte(`{"id":"ORD1","status":"CREATED","links":[{"href":"https://pp/approve","rel":"approve"}]}`))
		case "/v2/checkout/orders/ORD1/capture":
			if r.Header.Get("PayPal-Request-Id") != "capture-ORD1" {
				t.Errorf("missing idempotency header")
			}
			_, _ = w.Write([]byte(`{"id":"ORD1","status":"COMPLETED","purchase_units":[{"custom_id":"c1","payments":{"captures":[{"id":"CAP1","status":"COMPLETED","amount":{"currency_code":"USD","value":"49.00"}}]}}]}`))
		default:
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY"}`))
		}
	}))
}

func TestPayPal_CreateAndCapture(t *testing.T) {
	var tokenCalls int32
	srv := newPayPalServer(t, &tokenCalls)
	defer srv.Close()

	pp := NewPayPal(srv.URL, "cid", "secret")
	pp.HTTP = srv.Client()
	ctx := context.Background()

	o, err := pp.CreateOrder(ctx, OrderRequest{CustomID: "c1", Amount: Amount{CurrencyCode: "USD", Value: "49.00"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if o.ID != "ORD1" || o.ApproveURL != "https://pp/approve" {
		t.Fatalf("unexpected order %+v", o)
	}

	c, err := pp.CaptureOrder(ctx, "ORD1")
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if c.Status != StatusCompleted || c.CaptureID != "CAP1" || c.Amount.Value != "49.00" || c.CustomID != "c1" {
		t.Fatalf("unexpected capture %+v", c)
	}
	if n := atomic.LoadInt32(&tokenCalls); n != 1 {
		t.Fatalf("expected cached token, got %d token calls", n)
	}
}

func TestPayPal_APIError(t *testing.T) {
	var tokenCalls int32
	srv := newPayPalServer(t, &tokenCalls)
	defer srv.Close()

	pp := NewPayPal(srv.URL, "cid", "secret")
	pp.HTTP = srv.Client()
	_, err := pp.CaptureOrder(context.Background(), "OTHER")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 APIError, got %v", err)
	}
}
