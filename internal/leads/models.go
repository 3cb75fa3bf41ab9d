// Package leads captures contact and demo requests from the marketing page
// and relays them by e-mail.
package leads

import "time"

type Lead struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Company   string    `json:"company,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Message   string    `json:"message,omitempty"`
	Source    string    `json:"source,omitempty"`
	Relayed   bool      `json:"relayed"`
	CreatedAt time.Time `json:"createdAt"`
}

// Form is the public lead-capture payload.
type Form struct {
	Name    string `json:"name" validate:"required,max=120"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Company string `json:"company,omitempty" validate:"max=120"`
	Phone   string `json:"phone,omitempty" validate:"max=32"`
	Message string `json:"message,omitempty" validate:"max=4000"`
	Source  string `json:"source,omitempty" validate:"omitempty,oneof=contact demo pricing chatbot"`
}
