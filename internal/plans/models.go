package plans

// Amounts are expressed in minor units (e.g., cents) using int64.

// Plan is a subscription tier shown on the pricing page and charged at onboarding.
type Plan struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`

	// PriceMinor is the monthly price. Zero means the plan skips the payment step.
	PriceMinor int64 `json:"priceMinor"`

	// IncludedMinutes of agent talk time per month.
	IncludedMinutes int `json:"includedMinutes"`

	// OverageRatePerMinuteMinor is charged per started minute beyond IncludedMinutes.
	OverageRatePerMinuteMinor int64 `json:"overageRatePerMinuteMinor"`

	Features []string `json:"features"`
	Popular  bool     `json:"popular,omitempty"`
}

func (p Plan) IsFree() bool { return p.PriceMinor == 0 }

const (
	PlanFree         = "free"
	PlanStarter      = "starter"
	PlanProfessional = "professional"
	PlanEnterprise   = "enterprise"
)

// DefaultCatalog is the plan list served when no override is configured.
func DefaultCatalog() []Plan {
	return []Plan{
		{
			ID: PlanFree, Name: "Free Trial", Currency: "USD",
			IncludedMinutes: 30,
			Features:        []string{"1 AI agent", "Web voice widget", "Call log dashboard"},
		},
		{
			ID: PlanStarter, Name: "Starter", Currency: "USD", PriceMinor: 4900,
			IncludedMinutes: 300, OverageRatePerMinuteMinor: 15,
			Features: []string{"1 AI agent", "Dedicated phone number", "Call log dashboard", "E-mail support"},
		},
		{
			ID: PlanProfessional, Name: "Professional", Currency: "USD", PriceMinor: 14900,
			IncludedMinutes: 1200, OverageRatePerMinuteMinor: 12, Popular: true,
			Features: []string{"1 AI agent", "Dedicated phone number", "WhatsApp channel", "Calendar booking", "Priority support"},
		},
		{
			ID: PlanEnterprise, Name: "Enterprise", Currency: "USD", PriceMinor: 39900,
			IncludedMinutes: 5000, OverageRatePerMinuteMinor: 9,
			Features: []string{"1 AI agent", "Dedicated phone number", "WhatsApp channel", "Calendar booking", "Custom voice", "Account manager"},
		},
	}
}
