package clients

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("clients: not found")

// Repository persists client records. Clients are never deleted.
type Repository interface {
	Create(ctx context.Context, c Client) error
	Get(ctx context.Context, id string) (Client, error)
	// UpdatePlan switches the plan. A paid target puts the client back to
	// pending payment until a capture for it lands; a free one needs none.
	UpdatePlan(ctx context.Context, id, plan string, requiresPayment bool) error
	MarkPaid(ctx context.Context, id, paymentID string) error
	SetOnboardingState(ctx context.Context, id, state string) error
	// TransitionOnboardingState reads the current state, asks next for the new
	// one and writes it, with no other writer in between. An error from next
	// leaves the row untouched.
	TransitionOnboardingState(ctx context.Context, id string, next func(current string) (string, error)) (string, error)
}
