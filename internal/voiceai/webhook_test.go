package voiceai

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
)

func TestVerifyWebhook(t *testing.T) {
	body := []byte(`{"message":{"type":"status-update"}}`)
	mac := hmac.New(sha256.New, []byte("s3cret"))
	_, _ = mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	if err := VerifyWebhook("s3cret", sig, "", body); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
	if err := VerifyWebhook("s3cret", "deadbeef", "", body); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
	if err := VerifyWebhook("s3cret", "", "s3cret", body); err != nil {
		t.Fatalf("expected shared secret accepted, got %v", err)
	}
	if err := VerifyWebhook("s3cret", "", "", body); !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("expected missing signature, got %v", err)
	}
	if err := VerifyWebhook("", "", "", body); err != nil {
		t.Fatalf("expected verification disabled, got %v", err)
	}
}

func TestParseServerMessage_EndOfCallReport(t *testing.T) {
	body := []byte(`{"message":{"type":"end-of-call-report","endedReason":"assistant-ended-conversation",
		"durationSeconds":42,"cost":0.07,"artifact":{"transcript":"AI: bye"},
		"call":{"id":"call_1","assistantId":"asst_1","status":"in-progress","createdAt":"2025-03-01T10:00:00Z"}},
		"timestamp":1740823242000}`)

	m, err := ParseServerMessage(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.Type != EventEndOfCallReport || m.Timestamp.IsZero() {
		t.Fatalf("unexpected message %+v", m)
	}
	c := m.EndOfCallRecord().ToCall()
	if !c.Succeeded() || c.DurationSeconds != 42 || c.Transcript != "AI: bye" || c.ID != "call_1" {
		t.Fatalf("unexpected call %+v", c)
	}
}

func TestParseServerMessage_RejectsEmptyType(t *testing.T) {
	if _, err := ParseServerMessage([]byte(`{"message":{}}`)); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := ParseServerMessage([]byte(`nope`)); err == nil {
		t.Fatalf("expected decode error")
	}
}
