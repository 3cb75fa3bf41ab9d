package agents

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("agents: not found")
)

// Repository persists agents. Several agents may exist per client; callers
// that need "the" agent use LatestForClient.
type Repository interface {
	Create(ctx context.Context, a Agent) error
	Get(ctx context.Context, id string) (Agent, error)
	LatestForClient(ctx context.Context, clientID string) (Agent, error)
	ListByClient(ctx context.Context, clientID string) ([]Agent, error)

	// Update overwrites every mutable column of a.
	Update(ctx context.Context, a Agent) error

	UpsertWhatsApp(ctx context.Context, s WhatsAppSettings) error
	GetWhatsApp(ctx context.Context, agentID string) (WhatsAppSettings, error)
}
