package audit

import (
	"context"
	"fmt"

	"voiceagent-platform/internal/store"
)

type PostgresRepo struct {
	db store.DBTX
}

func NewPostgresRepo(db store.DBTX) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, client_id, type, actor_user_id, ip_address, agent_id, message, metadata, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`
	var metadata any
	if e.Metadata != "" {
		metadata = e.Metadata
	}
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.ClientID,
		string(e.Type),
		e.ActorUserID,
		e.IPAddress,
		e.AgentID,
		e.Message,
		metadata,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}
