package onboarding

import (
	"strings"

	"voiceagent-platform/pkg/utils"
)

// RegistrationForm is the sign-up form. Every rule is checked before any
// identity backend call.
type RegistrationForm struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	FirstName       string `json:"firstName" validate:"required,max=80"`
	LastName        string `json:"lastName" validate:"required,max=80"`
	Company         string `json:"company" validate:"max=120"`
	Phone           string `json:"phone" validate:"max=32"`
	Plan            string `json:"plan" validate:"required"`
}

// ValidationError lists field-level problems keyed by json field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "onboarding: validation failed" }

func (f *RegistrationForm) normalize() {
	f.Email = strings.TrimSpace(f.Email)
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.Company = strings.TrimSpace(f.Company)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Plan = strings.ToLower(strings.TrimSpace(f.Plan))
}

// Validate returns nil or a *ValidationError.
func (f RegistrationForm) Validate() error {
	f.normalize()
	if fields := utils.ValidateStruct(f); fields != nil {
		return &ValidationError{Fields: fields}
	}
	return nil
}
