package agents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"voiceagent-platform/internal/store"
)

type PostgresRepo struct {
	db    store.DBTX
	clock func() time.Time
}

func NewPostgresRepo(db store.DBTX) *PostgresRepo {
	return &PostgresRepo{db: db, clock: time.Now}
}

const agentColumns = `id, client_id, agent_name, agent_voice, first_message, system_prompt, model, temperature,
       vapi_assistant_id, assigned_phone_number, whatsapp_number, calendar_id, status, last_error,
       created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAgent(s scanner) (Agent, error) {
	var a Agent
	err := s.Scan(
		&a.ID,
		&a.ClientID,
		&a.AgentName,
		&a.AgentVoice,
		&a.FirstMessage,
		&a.SystemPrompt,
		&a.Model,
		&a.Temperature,
		&a.VapiAssistantID,
		&a.AssignedPhoneNumber,
		&a.WhatsappNumber,
		&a.CalendarID,
		&a.Status,
		&a.LastError,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

func (r *PostgresRepo) Create(ctx context.Context, a Agent) error {
	const q = `
INSERT INTO agents (` + agentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
`
	now := r.clock().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	_, err := r.db.ExecContext(ctx, q,
		a.ID,
		a.ClientID,
		a.AgentName,
		a.AgentVoice,
		a.FirstMessage,
		a.SystemPrompt,
		a.Model,
		a.Temperature,
		a.VapiAssistantID,
		a.AssignedPhoneNumber,
		a.WhatsappNumber,
		a.CalendarID,
		string(a.Status),
		a.LastError,
		a.CreatedAt,
		now,
	)
	if err != nil {
		return fmt.Errorf("agents: insert: %w", err)
	}
	return nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Agent, error) {
	q := `SELECT ` + agentColumns + ` FROM agents WHERE id = $1`
	a, err := scanAgent(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Agent{}, ErrNotFound
		}
		return Agent{}, fmt.Errorf("agents: get: %w", err)
	}
	return a, nil
}

func (r *PostgresRepo) LatestForClient(ctx context.Context, clientID string) (Agent, error) {
	q := `SELECT ` + agentColumns + ` FROM agents WHERE client_id = $1 ORDER BY created_at DESC LIMIT 1`
	a, err := scanAgent(r.db.QueryRowContext(ctx, q, clientID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Agent{}, ErrNotFound
		}
		return Agent{}, fmt.Errorf("agents: latest: %w", err)
	}
	return a, nil
}

func (r *PostgresRepo) ListByClient(ctx context.Context, clientID string) ([]Agent, error) {
	q := `SELECT ` + agentColumns + ` FROM agents WHERE client_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, clientID)
	if err != nil {
		return nil, fmt.Errorf("agents: list: %w", err)
	}
	defer rows.Close()

	var out []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("agents: scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("agents: rows: %w", err)
	}
	return out, nil
}

func (r *PostgresRepo) Update(ctx context.Context, a Agent) error {
	const q = `
UPDATE agents
SET agent_name = $2, agent_voice = $3, first_message = $4, system_prompt = $5, model = $6,
    temperature = $7, vapi_assistant_id = $8, assigned_phone_number = $9, whatsapp_number = $10,
    calendar_id = $11, status = $12, last_error = $13, updated_at = $14
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q,
		a.ID,
		a.AgentName,
		a.AgentVoice,
		a.FirstMessage,
		a.SystemPrompt,
		a.Model,
		a.Temperature,
		a.VapiAssistantID,
		a.AssignedPhoneNumber,
		a.WhatsappNumber,
		a.CalendarID,
		string(a.Status),
		a.LastError,
		r.clock().UTC(),
	)
	if err != nil {
		return fmt.Errorf("agents: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("agents: update: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) UpsertWhatsApp(ctx context.Context, s WhatsAppSettings) error {
	const q = `
INSERT INTO whatsapp_settings (agent_id, enabled, business_name, greeting, auto_reply, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (agent_id) DO UPDATE
SET enabled = EXCLUDED.enabled,
    business_name = EXCLUDED.business_name,
    greeting = EXCLUDED.greeting,
    auto_reply = EXCLUDED.auto_reply,
    updated_at = EXCLUDED.updated_at
`
	_, err := r.db.ExecContext(ctx, q, s.AgentID, s.Enabled, s.BusinessName, s.Greeting, s.AutoReply, r.clock().UTC())
	if err != nil {
		return fmt.Errorf("whatsapp_settings: upsert: %w", err)
	}
	return nil
}

func (r *PostgresRepo) GetWhatsApp(ctx context.Context, agentID string) (WhatsAppSettings, error) {
	const q = `
SELECT agent_id, enabled, business_name, greeting, auto_reply, updated_at
FROM whatsapp_settings
WHERE agent_id = $1
`
	var s WhatsAppSettings
	err := r.db.QueryRowContext(ctx, q, agentID).Scan(&s.AgentID, &s.Enabled, &s.BusinessName, &s.Greeting, &s.AutoReply, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return WhatsAppSettings{}, ErrNotFound
		}
		return WhatsAppSettings{}, fmt.Errorf("whatsapp_settings: get: %w", err)
	}
	return s, nil
}
