package calls

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"voiceagent-platform/internal/store"
)

// LogRepository persists end-of-call reports. Appends are idempotent per call id.
type LogRepository interface {
	Append(ctx context.Context, c Call) error
	ListByAssistant(ctx context.Context, assistantID string, limit int) ([]Call, error)
}

type PostgresRepo struct {
	db store.DBTX
}

func NewPostgresRepo(db store.DBTX) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, c Call) error {
	const q = `
INSERT INTO call_logs (
  id, assistant_id, phone_number, duration, status, ended_reason, cost, transcript, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO NOTHING
`
	_, err := r.db.ExecContext(ctx, q,
		c.ID,
		c.AssistantID,
		c.PhoneNumber,
		c.DurationSeconds,
		string(c.Status),
		c.EndedReason,
		c.Cost,
		c.Transcript,
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("call_logs: insert: %w", err)
	}
	return nil
}

func (r *PostgresRepo) ListByAssistant(ctx context.Context, assistantID string, limit int) ([]Call, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT id, assistant_id, phone_number, duration, status, ended_reason, cost, transcript, created_at
FROM call_logs
WHERE assistant_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, assistantID, limit)
	if err != nil {
		return nil, fmt.Errorf("call_logs: list: %w", err)
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		var c Call
		if err := rows.Scan(
			&c.ID,
			&c.AssistantID,
			&c.PhoneNumber,
			&c.DurationSeconds,
			&c.Status,
			&c.EndedReason,
			&c.Cost,
			&c.Transcript,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("call_logs: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("call_logs: rows: %w", err)
	}
	return out, nil
}

// MemoryRepo is an in-memory LogRepository for tests.
type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]Call
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{rows: map[string]Call{}} }

func (r *MemoryRepo) Append(_ context.Context, c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[c.ID]; !ok {
		r.rows[c.ID] = c
	}
	return nil
}

func (r *MemoryRepo) ListByAssistant(_ context.Context, assistantID string, limit int) ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.rows {
		if c.AssistantID == assistantID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
