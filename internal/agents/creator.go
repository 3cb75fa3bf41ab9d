package agents

import (
	"context"
	"errors"
	"fmt"

	"voiceagent-platform/internal/voiceai"
	"voiceagent-platform/pkg/client"
)

// CreateRequest is everything a creator needs to stand up an assistant.
type CreateRequest struct {
	ClientID     string
	Plan         string
	AgentName    string
	AgentVoice   string
	FirstMessage string
	SystemPrompt string
	Model        string
	Temperature  float64
}

type CreateResult struct {
	AgentID             string
	VapiAssistantID     string
	AssignedPhoneNumber string
	WhatsappNumber      string
}

// Creator stands up the external assistant for an agent.
type Creator interface {
	Name() string
	CreateAgent(ctx context.Context, req CreateRequest) (CreateResult, error)
}

// AssistantAPI is the part of the voice-AI client the agents package uses.
type AssistantAPI interface {
	CreateAssistant(ctx context.Context, a voiceai.Assistant) (voiceai.Assistant, error)
	UpdateAssistant(ctx context.Context, id string, patch voiceai.Assistant) (voiceai.Assistant, error)
}

// Defaults applied when the form leaves provider details empty.
const (
	DefaultVoiceProvider = "11labs"
	DefaultModelProvider = "openai"
	DefaultModel         = "gpt-4o-mini"
	DefaultTemperature   = 0.7
)

// VoiceAICreator creates the assistant directly at the voice-AI provider.
type VoiceAICreator struct {
	API AssistantAPI
	// ServerURL receives the assistant's webhook events.
	ServerURL string
}

func (c *VoiceAICreator) Name() string { return "voiceai" }

func (c *VoiceAICreator) CreateAgent(ctx context.Context, req CreateRequest) (CreateResult, error) {
	a, err := c.API.CreateAssistant(ctx, AssistantPayload(req.AgentName, req.AgentVoice, req.FirstMessage, req.SystemPrompt, req.Model, req.Temperature, c.ServerURL, map[string]string{
		"clientId": req.ClientID,
		"plan":     req.Plan,
	}))
	if err != nil {
		return CreateResult{}, err
	}
	return CreateResult{VapiAssistantID: a.ID}, nil
}

// AssistantPayload builds the provider assistant body from agent fields.
func AssistantPayload(name, voice, firstMessage, systemPrompt, model string, temperature float64, serverURL string, metadata map[string]string) voiceai.Assistant {
	if model == "" {
		model = DefaultModel
	}
	temp := temperature
	a := voiceai.Assistant{
		Name:         name,
		FirstMessage: firstMessage,
		Model: &voiceai.Model{
			Provider:    DefaultModelProvider,
			Model:       model,
			Temperature: &temp,
		},
		ServerURL: serverURL,
		Metadata:  metadata,
	}
	if systemPrompt != "" {
		a.Model.Messages = []voiceai.Message{{Role: "system", Content: systemPrompt}}
	}
	if voice != "" {
		a.Voice = &voiceai.Voice{Provider: DefaultVoiceProvider, VoiceID: voice}
	}
	return a
}

// BackendAgentAPI is the sibling backend's agent endpoint as seen through the client SDK.
type BackendAgentAPI interface {
	CreateBackendAgent(ctx context.Context, req client.BackendAgentRequest) (client.Agent, error)
}

// BackendCreator delegates to a sibling backend's POST /api/agents/create.
// The SDK refreshes its service token once on a 401.
type BackendCreator struct {
	API BackendAgentAPI
}

func (c *BackendCreator) Name() string { return "backend" }

func (c *BackendCreator) CreateAgent(ctx context.Context, req CreateRequest) (CreateResult, error) {
	temp := req.Temperature
	a, err := c.API.CreateBackendAgent(ctx, client.BackendAgentRequest{
		ClientID: req.ClientID,
		Plan:     req.Plan,
		AgentForm: client.AgentForm{
			AgentName:    req.AgentName,
			AgentVoice:   req.AgentVoice,
			FirstMessage: req.FirstMessage,
			SystemPrompt: req.SystemPrompt,
			Model:        req.Model,
			Temperature:  &temp,
		},
	})
	if err != nil {
		return CreateResult{}, fmt.Errorf("backend create agent: %w", err)
	}
	if a.VapiAssistantID == "" {
		return CreateResult{}, errors.New("backend create agent: response without vapiAssistantId")
	}
	return CreateResult{
		AgentID:             a.AgentID,
		VapiAssistantID:     a.VapiAssistantID,
		AssignedPhoneNumber: a.AssignedPhoneNumber,
		WhatsappNumber:      a.WhatsappNumber,
	}, nil
}
