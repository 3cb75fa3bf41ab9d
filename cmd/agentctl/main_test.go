package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := readPassword
	readPassword = func(int) ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { readPassword = orig })
}

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var in struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.Password != "password1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid password","code":"wrong-password"}`))
			return
		}
		_, _ = w.Write([]byte(`{"user":{"id":"u1","email":"` + in.Email + `","role":"client"},"tokens":{"accessToken":"a1","refreshToken":"r1"},"next":"/dashboard"}`))
	})
	mux.HandleFunc("/api/dashboard/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer a1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"totalCalls":3,"successfulCalls":1,"successRate":33,"todayCalls":2,"averageDurationMinutes":1.5}`))
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"next":"/login"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"agentctl"}, &stdout, &stderr); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
	if code := run([]string{"agentctl", "dance"}, &stdout, &stderr); code != 2 {
		t.Fatalf("expected exit 2 for unknown command, got %d", code)
	}
	if !strings.Contains(stderr.String(), "usage:") {
		t.Fatalf("expected usage, got %q", stderr.String())
	}
}

func TestRun_LoginStatsLogout(t *testing.T) {
	srv := newAPI(t)
	session := filepath.Join(t.TempDir(), "session.json")
	stubPassword(t, "password1")

	var stdout, stderr bytes.Buffer
	code := run([]string{"agentctl", "login", "-addr", srv.URL, "-session", session, "-email", "ada@example.com"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("login exit %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "ada@example.com") {
		t.Fatalf("unexpected output %q", stdout.String())
	}
	b, err := os.ReadFile(session)
	if err != nil || !strings.Contains(string(b), "a1") {
		t.Fatalf("expected stored session, got %q (%v)", b, err)
	}

	stdout.Reset()
	if code := run([]string{"agentctl", "stats", "-addr=" + srv.URL, "-session=" + session}, &stdout, &stderr); code != 0 {
		t.Fatalf("stats exit %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "success rate: 33%") {
		t.Fatalf("unexpected stats %q", stdout.String())
	}

	if code := run([]string{"agentctl", "logout", "-addr", srv.URL, "-session", session}, &stdout, &stderr); code != 0 {
		t.Fatalf("logout exit %d: %s", code, stderr.String())
	}
	b, _ = os.ReadFile(session)
	if strings.Contains(string(b), "a1") {
		t.Fatalf("expected session cleared, got %q", b)
	}
}

func TestRun_LoginWrongPassword(t *testing.T) {
	srv := newAPI(t)
	session := filepath.Join(t.TempDir(), "session.json")
	stubPassword(t, "nope")

	var stdout, stderr bytes.Buffer
	code := run([]string{"agentctl", "login", "-addr", srv.URL, "-session", session, "-email", "ada@example.com"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "Invalid password") {
		t.Fatalf("expected server message, got %q", stderr.String())
	}
	if _, err := os.Stat(session); !os.IsNotExist(err) {
		t.Fatalf("expected no session file, got %v", err)
	}
}

func TestRun_WhoamiWithoutSession(t *testing.T) {
	session := filepath.Join(t.TempDir(), "session.json")
	var stdout, stderr bytes.Buffer
	if code := run([]string{"agentctl", "whoami", "-session", session}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "not signed in") {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}

func TestRun_ProvisionRequiresName(t *testing.T) {
	session := filepath.Join(t.TempDir(), "session.json")
	var stdout, stderr bytes.Buffer
	if code := run([]string{"agentctl", "provision", "-session", session}, &stdout, &stderr); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
}
