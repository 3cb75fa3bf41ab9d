package voiceai

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Server message types delivered to the assistant's serverUrl.
const (
	EventStatusUpdate     = "status-update"
	EventSpeechUpdate     = "speech-update"
	EventEndOfCallReport  = "end-of-call-report"
	EventTranscript       = "transcript"
	EventConversationTurn = "conversation-update"
)

const (
	HeaderSecret    = "X-Vapi-Secret"
	HeaderSignature = "X-Vapi-Signature"
)

var (
	ErrMissingSignature = errors.New("voiceai: missing webhook signature")
	ErrInvalidSignature = errors.New("voiceai: invalid webhook signature")
)

// VerifyWebhook accepts either an HMAC-SHA256 hex signature of the body or the
// plain shared secret header. An empty secret disables verification.
func VerifyWebhook(secret, signature, sharedSecret string, body []byte) error {
	if secret == "" {
		return nil
	}
	if signature != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		_, _ = mac.Write(body)
		expected := hex.EncodeToString(mac.Sum(nil))
		if !hmac.Equal([]byte(expected), []byte(signature)) {
			return ErrInvalidSignature
		}
		return nil
	}
	if sharedSecret == "" {
		return ErrMissingSignature
	}
	if !hmac.Equal([]byte(secret), []byte(sharedSecret)) {
		return ErrInvalidSignature
	}
	return nil
}

// ServerMessage is the envelope of every webhook event.
type ServerMessage struct {
	Type string `json:"type"`

	// status-update and speech-update
	Status string `json:"status,omitempty"`
	Role   string `json:"role,omitempty"`

	// end-of-call-report
	EndedReason     string   `json:"endedReason,omitempty"`
	DurationSeconds *float64 `json:"durationSeconds,omitempty"`
	Cost            float64  `json:"cost,omitempty"`
	Transcript      string   `json:"transcript,omitempty"`
	Artifact        *struct {
		Transcript string `json:"transcript"`
	} `json:"artifact,omitempty"`

	Call      RawCall   `json:"call"`
	Timestamp time.Time `json:"-"`
}

func ParseServerMessage(body []byte) (ServerMessage, error) {
	var env struct {
		Message   ServerMessage `json:"message"`
		Timestamp int64         `json:"timestamp"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ServerMessage{}, fmt.Errorf("voiceai: decode webhook: %w", err)
	}
	if env.Message.Type == "" {
		return ServerMessage{}, errors.New("voiceai: webhook without message type")
	}
	m := env.Message
	if env.Timestamp > 0 {
		m.Timestamp = time.UnixMilli(env.Timestamp).UTC()
	}
	return m, nil
}

// EndOfCallRecord folds the report fields into the embedded call.
func (m ServerMessage) EndOfCallRecord() RawCall {
	rc := m.Call
	if m.EndedReason != "" {
		rc.EndedReason = m.EndedReason
	}
	if rc.Status == "" || m.Type == EventEndOfCallReport {
		rc.Status = "ended"
	}
	if m.DurationSeconds != nil {
		rc.Duration = m.DurationSeconds
	}
	if m.Cost != 0 {
		rc.Cost = m.Cost
	}
	switch {
	case m.Transcript != "":
		rc.Transcript = m.Transcript
	case m.Artifact != nil && m.Artifact.Transcript != "":
		rc.Transcript = m.Artifact.Transcript
	}
	return rc
}
