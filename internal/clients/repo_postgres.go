package clients

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"voiceagent-platform/internal/store"
	"voiceagent-platform/pkg/utils"
)

type PostgresRepo struct {
	db    store.DBTX
	clock func() time.Time
}

func NewPostgresRepo(db store.DBTX) *PostgresRepo {
	return &PostgresRepo{db: db, clock: time.Now}
}

func (r *PostgresRepo) Create(ctx context.Context, c Client) error {
	const q = `
INSERT INTO clients (
  id, email, first_name, last_name, company, phone, plan, status,
  payment_id, payment_status, onboarding_state, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)
`
	now := r.clock().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	_, err := r.db.ExecContext(ctx, q,
		c.ID,
		c.Email,
		c.FirstName,
		c.LastName,
		c.Company,
		c.Phone,
		c.Plan,
		c.Status,
		c.PaymentID,
		c.PaymentStatus,
		c.OnboardingState,
		c.CreatedAt,
		now,
	)
	if err != nil {
		return fmt.Errorf("clients: insert: %w", err)
	}
	return nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Client, error) {
	const q = `
SELECT id, email, first_name, last_name, company, phone, plan, status,
       payment_id, payment_status, onboarding_state, created_at, updated_at
FROM clients
WHERE id = $1
`
	var c Client
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&c.ID,
		&c.Email,
		&c.FirstName,
		&c.LastName,
		&c.Company,
		&c.Phone,
		&c.Plan,
		&c.Status,
		&c.PaymentID,
		&c.PaymentStatus,
		&c.OnboardingState,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Client{}, ErrNotFound
		}
		return Client{}, fmt.Errorf("clients: get: %w", err)
	}
	return c, nil
}

func (r *PostgresRepo) UpdatePlan(ctx context.Context, id, plan string, requiresPayment bool) error {
	const q = `UPDATE clients SET plan = $2, status = $3, payment_status = $4, updated_at = $5 WHERE id = $1`
	status, payment := planStatus(requiresPayment)
	return r.exec(ctx, q, id, plan, status, payment, r.clock().UTC())
}

func (r *PostgresRepo) MarkPaid(ctx context.Context, id, paymentID string) error {
	const q = `
UPDATE clients
SET payment_id = $2, payment_status = $3, status = $4, updated_at = $5
WHERE id = $1
`
	return r.exec(ctx, q, id, paymentID, PaymentStatusCompleted, StatusActive, r.clock().UTC())
}

func (r *PostgresRepo) SetOnboardingState(ctx context.Context, id, state string) error {
	const q = `UPDATE clients SET onboarding_state = $2, updated_at = $3 WHERE id = $1`
	return r.exec(ctx, q, id, state, r.clock().UTC())
}

// TransitionOnboardingState locks the client row for the read-check-write.
// When the repo already runs inside a caller's transaction it joins it.
func (r *PostgresRepo) TransitionOnboardingState(ctx context.Context, id string, next func(string) (string, error)) (string, error) {
	var out string
	run := func(ctx context.Context, db store.DBTX) error {
		var cur string
		err := db.QueryRowContext(ctx, `SELECT onboarding_state FROM clients WHERE id = $1 FOR UPDATE`, id).Scan(&cur)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("clients: lock: %w", err)
		}
		out = cur
		to, err := next(cur)
		if err != nil {
			return err
		}
		if to == cur {
			return nil
		}
		const q = `UPDATE clients SET onboarding_state = $2, updated_at = $3 WHERE id = $1`
		if _, err := db.ExecContext(ctx, q, id, to, r.clock().UTC()); err != nil {
			return fmt.Errorf("clients: update: %w", err)
		}
		out = to
		return nil
	}

	db, ok := r.db.(*sql.DB)
	if !ok {
		err := run(ctx, r.db)
		return out, err
	}
	err := utils.WithTx(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return run(ctx, tx)
	})
	return out, err
}

func (r *PostgresRepo) exec(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("clients: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("clients: update: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
