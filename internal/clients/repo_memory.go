package clients

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]Client
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{rows: map[string]Client{}} }

func (r *MemoryRepo) Create(ctx context.Context, c Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[c.ID]; ok {
		return errors.New("clients: duplicate id")
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	r.rows[c.ID] = c
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return Client{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) UpdatePlan(ctx context.Context, id, plan string, requiresPayment bool) error {
	status, payment := planStatus(requiresPayment)
	return r.mutate(id, func(c *Client) {
		c.Plan = plan
		c.Status = status
		c.PaymentStatus = payment
	})
}

func (r *MemoryRepo) MarkPaid(ctx context.Context, id, paymentID string) error {
	return r.mutate(id, func(c *Client) {
		c.PaymentID = paymentID
		c.PaymentStatus = PaymentStatusCompleted
		c.Status = StatusActive
	})
}

func (r *MemoryRepo) SetOnboardingState(ctx context.Context, id, state string) error {
	return r.mutate(id, func(c *Client) { c.OnboardingState = state })
}

func (r *MemoryRepo) TransitionOnboardingState(ctx context.Context, id string, next func(string) (string, error)) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return "", ErrNotFound
	}
	to, err := next(c.OnboardingState)
	if err != nil {
		return c.OnboardingState, err
	}
	if to != c.OnboardingState {
		c.OnboardingState = to
		c.UpdatedAt = time.Now().UTC()
		r.rows[id] = c
	}
	return to, nil
}

func (r *MemoryRepo) mutate(id string, fn func(c *Client)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return ErrNotFound
	}
	fn(&c)
	c.UpdatedAt = time.Now().UTC()
	r.rows[id] = c
	return nil
}
