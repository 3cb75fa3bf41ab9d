package agents

import (
	"strings"
	"time"

	"voiceagent-platform/internal/session"
)

// Agent is a client's AI voice/chat assistant. The external assistant lives at
// the voice-AI provider; this row is the denormalized copy.
type Agent struct {
	ID       string `json:"id" db:"id"`
	ClientID string `json:"clientId" db:"client_id"`

	AgentName    string  `json:"agentName" db:"agent_name"`
	AgentVoice   string  `json:"agentVoice" db:"agent_voice"`
	FirstMessage string  `json:"firstMessage" db:"first_message"`
	SystemPrompt string  `json:"systemPrompt" db:"system_prompt"`
	Model        string  `json:"model,omitempty" db:"model"`
	Temperature  float64 `json:"temperature" db:"temperature"`

	VapiAssistantID     string `json:"vapiAssistantId" db:"vapi_assistant_id"`
	AssignedPhoneNumber string `json:"assignedPhoneNumber,omitempty" db:"assigned_phone_number"`
	WhatsappNumber      string `json:"whatsappNumber,omitempty" db:"whatsapp_number"`
	CalendarID          string `json:"calendarId,omitempty" db:"calendar_id"`

	Status    Status `json:"status" db:"status"`
	LastError string `json:"lastError,omitempty" db:"last_error"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type Status string

const (
	StatusProvisioning       Status = "provisioning"
	StatusActive             Status = "active"
	StatusProvisioningFailed Status = "provisioning_failed"
	StatusPlaceholder        Status = "placeholder"
)

// StaleProvisioningAfter is how long a provisioning row may sit untouched
// before Retry treats it as abandoned. It matches the provisioning lock TTL.
const StaleProvisioningAfter = 2 * time.Minute

// PlaceholderPrefix marks ids synthesized after a failed provisioning call.
const PlaceholderPrefix = "placeholder_"

// HasLiveAssistant reports whether the agent is bound to a real external assistant.
func (a Agent) HasLiveAssistant() bool {
	return a.VapiAssistantID != "" && !strings.HasPrefix(a.VapiAssistantID, PlaceholderPrefix)
}

// Retryable reports whether provisioning may be run again for this agent.
func (a Agent) Retryable() bool {
	return a.Status == StatusProvisioningFailed || a.Status == StatusPlaceholder
}

// SessionCopy is the subset mirrored into the session store.
func (a Agent) SessionCopy() session.AgentData {
	return session.AgentData{
		AgentID:             a.ID,
		AgentName:           a.AgentName,
		AgentVoice:          a.AgentVoice,
		FirstMessage:        a.FirstMessage,
		SystemPrompt:        a.SystemPrompt,
		VapiAssistantID:     a.VapiAssistantID,
		AssignedPhoneNumber: a.AssignedPhoneNumber,
		WhatsappNumber:      a.WhatsappNumber,
		Status:              string(a.Status),
	}
}

// WhatsAppSettings configure the agent's WhatsApp channel. Last writer wins.
type WhatsAppSettings struct {
	AgentID      string    `json:"agentId" db:"agent_id"`
	Enabled      bool      `json:"enabled" db:"enabled"`
	BusinessName string    `json:"businessName" db:"business_name"`
	Greeting     string    `json:"greeting" db:"greeting"`
	AutoReply    bool      `json:"autoReply" db:"auto_reply"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}
