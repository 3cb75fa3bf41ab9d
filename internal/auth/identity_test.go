package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voiceagent-platform/pkg/logger"
)

func TestIdentityBackend_SignInMapsProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "k" {
			t.Errorf("expected api key in query, got %q", r.URL.RawQuery)
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"INVALID_PASSWORD"}}`))
	}))
	defer srv.Close()

	b := NewIdentityBackend(srv.URL, "k")
	_, err := b.SignIn(context.Background(), "a@b.co", "wrong")
	if CodeOf(err) != CodeWrongPassword {
		t.Fatalf("expected wrong-password, got %v", err)
	}
	if err.Error() != messages[CodeWrongPassword] {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestIdentityBackend_SignInLooksUpVerification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "accounts:signInWithPassword"):
			var in map[string]any
			_ = json.NewDecoder(r.Body).Decode(&in)
			if in["email"] != "a@b.co" || in["returnSecureToken"] != true {
				t.Errorf("unexpected body %v", in)
			}
			_, _ = w.Write([]byte(`{"localId":"uid-1","email":"a@b.co","idToken":"tok"}`))
		case strings.HasSuffix(r.URL.Path, "accounts:lookup"):
			_, _ = w.Write([]byte(`{"users":[{"emailVerified":true}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	b := NewIdentityBackend(srv.URL, "k")
	id, err := b.SignIn(context.Background(), "a@b.co", "pw")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if id.UserID != "uid-1" || !id.EmailVerified {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestIdentityBackend_RegisterSendsVerification(t *testing.T) {
	var sawVerify bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "accounts:signUp"):
			_, _ = w.Write([]byte(`{"localId":"uid-2","email":"n@b.co","idToken":"tok"}`))
		case strings.HasSuffix(r.URL.Path, "accounts:sendOobCode"):
			var in map[string]any
			_ = json.NewDecoder(r.Body).Decode(&in)
			sawVerify = in["requestType"] == "VERIFY_EMAIL" && in["idToken"] == "tok"
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	b := NewIdentityBackend(srv.URL, "k")
	id, requires, err := b.Register(context.Background(), "n@b.co", "password1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !requires || id.UserID != "uid-2" || !sawVerify {
		t.Fatalf("unexpected result id=%+v requires=%v verify=%v", id, requires, sawVerify)
	}
}

func TestIdentityBackend_RegisterLogsFailedVerificationMail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "accounts:signUp"):
			_, _ = w.Write([]byte(`{"localId":"uid-3","email":"m@b.co","idToken":"tok"}`))
		case strings.HasSuffix(r.URL.Path, "accounts:sendOobCode"):
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"QUOTA_EXCEEDED"}}`))
		}
	}))
	defer srv.Close()

	var buf bytes.Buffer
	ctx := logger.With(context.Background(), logger.NewWithWriter(&buf, "prod", "test"))
	b := NewIdentityBackend(srv.URL, "k")
	id, _, err := b.Register(ctx, "m@b.co", "password1")
	if err != nil || id.UserID != "uid-3" {
		t.Fatalf("register should survive a mail failure: %+v %v", id, err)
	}
	out := buf.String()
	if !strings.Contains(out, `"level":"WARN"`) || !strings.Contains(out, "verification mail failed") {
		t.Fatalf("expected warn log, got %q", out)
	}
}

func TestIdentityBackend_UnparseableErrorIsGeneric(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer srv.Close()

	err := NewIdentityBackend(srv.URL, "k").SendPasswordReset(context.Background(), "a@b.co")
	if CodeOf(err) != CodeGeneric {
		t.Fatalf("expected generic, got %v", err)
	}
}
