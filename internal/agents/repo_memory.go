package agents

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu       sync.Mutex
	rows     map[string]Agent
	whatsapp map[string]WhatsAppSettings
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: map[string]Agent{}, whatsapp: map[string]WhatsAppSettings{}}
}

func (r *MemoryRepo) Create(_ context.Context, a Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	r.rows[a.ID] = a
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok {
		return Agent{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepo) LatestForClient(ctx context.Context, clientID string) (Agent, error) {
	list, _ := r.ListByClient(ctx, clientID)
	if len(list) == 0 {
		return Agent{}, ErrNotFound
	}
	return list[0], nil
}

func (r *MemoryRepo) ListByClient(_ context.Context, clientID string) ([]Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Agent
	for _, a := range r.rows {
		if a.ClientID == clientID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) Update(_ context.Context, a Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.rows[a.ID]
	if !ok {
		return ErrNotFound
	}
	a.ClientID = prev.ClientID
	a.CreatedAt = prev.CreatedAt
	a.UpdatedAt = time.Now().UTC()
	r.rows[a.ID] = a
	return nil
}

func (r *MemoryRepo) UpsertWhatsApp(_ context.Context, s WhatsAppSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.UpdatedAt = time.Now().UTC()
	r.whatsapp[s.AgentID] = s
	return nil
}

func (r *MemoryRepo) GetWhatsApp(_ context.Context, agentID string) (WhatsAppSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.whatsapp[agentID]
	if !ok {
		return WhatsAppSettings{}, ErrNotFound
	}
	return s, nil
}
