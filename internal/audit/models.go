package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - client_id is required; anonymous flows record the attempted e-mail in Metadata instead.
// - actor and ip capture are best-effort; do not block auth or provisioning on audit failures.
type Event struct {
	ID       string    `json:"id" db:"id"`
	ClientID string    `json:"client_id" db:"client_id"`
	Type     EventType `json:"type" db:"type"`

	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	IPAddress   string `json:"ip_address,omitempty" db:"ip_address"`

	// AgentID is set for provisioning and settings events.
	AgentID string `json:"agent_id,omitempty" db:"agent_id"`

	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeSignIn            EventType = "sign_in"
	EventTypeSignOut           EventType = "sign_out"
	EventTypeRegister          EventType = "register"
	EventTypeSessionExpired    EventType = "session_expired"
	EventTypePaymentCaptured   EventType = "payment_captured"
	EventTypeAgentProvisioned  EventType = "agent_provisioned"
	EventTypeProvisioningError EventType = "provisioning_failed"
	EventTypeSettingsChanged   EventType = "settings_changed"
)
