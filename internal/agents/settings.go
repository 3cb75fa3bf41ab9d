package agents

import (
	"context"
	"errors"
	"fmt"

	"voiceagent-platform/internal/audit"
	"voiceagent-platform/internal/session"
	"voiceagent-platform/internal/voiceai"
	"voiceagent-platform/pkg/logger"
)

var ErrNotProvisioned = errors.New("agents: agent has no live assistant")

// SettingsPatch carries only the fields the panel changed.
type SettingsPatch struct {
	AgentName    *string  `json:"agentName" binding:"omitempty,min=1,max=80"`
	AgentVoice   *string  `json:"agentVoice" binding:"omitempty,max=120"`
	FirstMessage *string  `json:"firstMessage" binding:"omitempty,max=1000"`
	SystemPrompt *string  `json:"systemPrompt" binding:"omitempty,max=20000"`
	Model        *string  `json:"model" binding:"omitempty,max=80"`
	Temperature  *float64 `json:"temperature" binding:"omitempty,gte=0,lte=2"`
}

func (p SettingsPatch) empty() bool {
	return p.AgentName == nil && p.AgentVoice == nil && p.FirstMessage == nil &&
		p.SystemPrompt == nil && p.Model == nil && p.Temperature == nil
}

// Settings edits a provisioned agent. The external assistant is patched
// first; the local copies follow. Concurrent edits are last writer wins.
type Settings struct {
	repo  Repository
	api   AssistantAPI
	store *session.Store
	audit *audit.Service
}

func NewSettings(repo Repository, api AssistantAPI, store *session.Store, au *audit.Service) *Settings {
	return &Settings{repo: repo, api: api, store: store, audit: au}
}

// Owned loads an agent and checks it belongs to clientID.
func (s *Settings) Owned(ctx context.Context, clientID, agentID string) (Agent, error) {
	a, err := s.repo.Get(ctx, agentID)
	if err != nil {
		return Agent{}, err
	}
	if a.ClientID != clientID {
		return Agent{}, ErrForbidden
	}
	return a, nil
}

func (s *Settings) Update(ctx context.Context, userID, clientID, agentID string, patch SettingsPatch) (Agent, error) {
	a, err := s.Owned(ctx, clientID, agentID)
	if err != nil {
		return Agent{}, err
	}
	if patch.empty() {
		return a, nil
	}
	if !a.HasLiveAssistant() {
		return Agent{}, ErrNotProvisioned
	}

	if patch.AgentName != nil {
		a.AgentName = *patch.AgentName
	}
	if patch.AgentVoice != nil {
		a.AgentVoice = *patch.AgentVoice
	}
	if patch.FirstMessage != nil {
		a.FirstMessage = *patch.FirstMessage
	}
	if patch.SystemPrompt != nil {
		a.SystemPrompt = *patch.SystemPrompt
	}
	if patch.Model != nil {
		a.Model = *patch.Model
	}
	if patch.Temperature != nil {
		a.Temperature = *patch.Temperature
	}

	body := voiceai.Assistant{}
	if patch.AgentName != nil {
		body.Name = a.AgentName
	}
	if patch.FirstMessage != nil {
		body.FirstMessage = a.FirstMessage
	}
	if patch.AgentVoice != nil && a.AgentVoice != "" {
		body.Voice = &voiceai.Voice{Provider: DefaultVoiceProvider, VoiceID: a.AgentVoice}
	}
	// the provider replaces the model object whole, so send every model field
	if patch.Model != nil || patch.Temperature != nil || patch.SystemPrompt != nil {
		full := AssistantPayload(a.AgentName, "", "", a.SystemPrompt, a.Model, a.Temperature, "", nil)
		body.Model = full.Model
	}

	if _, err := s.api.UpdateAssistant(ctx, a.VapiAssistantID, body); err != nil {
		return Agent{}, fmt.Errorf("update assistant: %w", err)
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return Agent{}, err
	}
	if err := s.store.SetAgent(ctx, userID, a.SessionCopy()); err != nil {
		logger.From(ctx).Warn("session agent copy failed", "agent_id", a.ID, "error", err)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, audit.EventTypeSettingsChanged, clientID, userID, a.ID, "assistant settings updated")
	}
	return a, nil
}

// SetCalendar binds a calendar used for bookings made during calls.
func (s *Settings) SetCalendar(ctx context.Context, userID, clientID, agentID, calendarID string) (Agent, error) {
	a, err := s.Owned(ctx, clientID, agentID)
	if err != nil {
		return Agent{}, err
	}
	a.CalendarID = calendarID
	if err := s.repo.Update(ctx, a); err != nil {
		return Agent{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, audit.EventTypeSettingsChanged, clientID, userID, a.ID, "calendar attached")
	}
	return a, nil
}

func (s *Settings) SaveWhatsApp(ctx context.Context, userID, clientID, agentID string, ws WhatsAppSettings) (WhatsAppSettings, error) {
	if _, err := s.Owned(ctx, clientID, agentID); err != nil {
		return WhatsAppSettings{}, err
	}
	ws.AgentID = agentID
	if err := s.repo.UpsertWhatsApp(ctx, ws); err != nil {
		return WhatsAppSettings{}, err
	}
	saved, err := s.repo.GetWhatsApp(ctx, agentID)
	if err != nil {
		return WhatsAppSettings{}, err
	}
	if err := s.store.SetWhatsAppSettings(ctx, userID, saved); err != nil {
		logger.From(ctx).Warn("session whatsapp copy failed", "agent_id", agentID, "error", err)
	}
	return saved, nil
}

func (s *Settings) WhatsApp(ctx context.Context, clientID, agentID string) (WhatsAppSettings, error) {
	if _, err := s.Owned(ctx, clientID, agentID); err != nil {
		return WhatsAppSettings{}, err
	}
	ws, err := s.repo.GetWhatsApp(ctx, agentID)
	if errors.Is(err, ErrNotFound) {
		return WhatsAppSettings{AgentID: agentID}, nil
	}
	return ws, err
}

// Latest returns the client's most recent agent.
func (s *Settings) Latest(ctx context.Context, clientID string) (Agent, error) {
	return s.repo.LatestForClient(ctx, clientID)
}

func (s *Settings) List(ctx context.Context, clientID string) ([]Agent, error) {
	return s.repo.ListByClient(ctx, clientID)
}
