package clients

import "time"

// Client is a registered business account. Its ID is the identity backend's
// user id, so one login maps to exactly one client row.
type Client struct {
	ID        string `json:"id" db:"id"`
	Email     string `json:"email" db:"email"`
	FirstName string `json:"firstName" db:"first_name"`
	LastName  string `json:"lastName" db:"last_name"`
	Company   string `json:"company" db:"company"`
	Phone     string `json:"phone" db:"phone"`

	Plan   string `json:"plan" db:"plan"`
	Status Status `json:"status" db:"status"`

	PaymentID     string        `json:"paymentId,omitempty" db:"payment_id"`
	PaymentStatus PaymentStatus `json:"paymentStatus" db:"payment_status"`

	OnboardingState string `json:"onboardingState" db:"onboarding_state"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type Status string

const (
	StatusActive         Status = "active"
	StatusPendingPayment Status = "pending_payment"
)

type PaymentStatus string

const (
	PaymentStatusNotRequired PaymentStatus = "not_required"
	PaymentStatusPending     PaymentStatus = "pending"
	PaymentStatusCompleted   PaymentStatus = "completed"
)

func planStatus(requiresPayment bool) (Status, PaymentStatus) {
	if requiresPayment {
		return StatusPendingPayment, PaymentStatusPending
	}
	return StatusActive, PaymentStatusNotRequired
}
