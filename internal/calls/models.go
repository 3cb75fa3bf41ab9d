package calls

import "time"

// Call is one conversation handled by a voice-AI assistant. Records come from
// the voice-AI provider's call list and, for calls whose end-of-call report
// reached our webhook, from the call_logs table.
type Call struct {
	ID          string `json:"id" db:"id"`
	AssistantID string `json:"assistantId" db:"assistant_id"`

	// PhoneNumber is the customer's number; empty for web calls.
	PhoneNumber string `json:"phoneNumber,omitempty" db:"phone_number"`

	// Duration is in seconds.
	DurationSeconds int `json:"duration" db:"duration"`

	Status      Status `json:"status" db:"status"`
	EndedReason string `json:"endedReason,omitempty" db:"ended_reason"`

	Cost       float64 `json:"cost" db:"cost"`
	Transcript string  `json:"transcript,omitempty" db:"transcript"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type Status string

const (
	StatusQueued     Status = "queued"
	StatusRinging    Status = "ringing"
	StatusInProgress Status = "in-progress"
	StatusForwarding Status = "forwarding"
	StatusEnded      Status = "ended"
)

// EndedReasonAssistantEnded is the only ended reason counted as a successful call.
const EndedReasonAssistantEnded = "assistant-ended-conversation"

// Succeeded reports whether the assistant brought the call to a normal close.
func (c Call) Succeeded() bool {
	return c.Status == StatusEnded && c.EndedReason == EndedReasonAssistantEnded
}
