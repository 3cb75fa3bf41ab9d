package leads

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"voiceagent-platform/internal/store"
)

var ErrNotFound = errors.New("leads: not found")

type Repository interface {
	Create(ctx context.Context, l Lead) error
	MarkRelayed(ctx context.Context, id string) error
	List(ctx context.Context, limit int) ([]Lead, error)
}

type PostgresRepo struct {
	db store.DBTX
}

func NewPostgresRepo(db store.DBTX) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Create(ctx context.Context, l Lead) error {
	const q = `
INSERT INTO leads (id, name, email, company, phone, message, source, relayed, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`
	_, err := r.db.ExecContext(ctx, q, l.ID, l.Name, l.Email, l.Company, l.Phone, l.Message, l.Source, l.Relayed, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("leads: insert: %w", err)
	}
	return nil
}

func (r *PostgresRepo) MarkRelayed(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE leads SET relayed = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("leads: mark relayed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) List(ctx context.Context, limit int) ([]Lead, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, name, email, company, phone, message, source, relayed, created_at
FROM leads ORDER BY created_at DESC LIMIT $1
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("leads: list: %w", err)
	}
	defer rows.Close()

	out := []Lead{}
	for rows.Next() {
		var l Lead
		if err := rows.Scan(&l.ID, &l.Name, &l.Email, &l.Company, &l.Phone, &l.Message, &l.Source, &l.Relayed, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]Lead
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{rows: map[string]Lead{}} }

func (r *MemoryRepo) Create(_ context.Context, l Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[l.ID] = l
	return nil
}

func (r *MemoryRepo) MarkRelayed(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.rows[id]
	if !ok {
		return ErrNotFound
	}
	l.Relayed = true
	r.rows[id] = l
	return nil
}

func (r *MemoryRepo) List(_ context.Context, limit int) ([]Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Lead, 0, len(r.rows))
	for _, l := range r.rows {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
