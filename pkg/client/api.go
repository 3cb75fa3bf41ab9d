package client

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type Call struct {
	ID          string    `json:"id"`
	AssistantID string    `json:"assistantId"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
	Duration    int       `json:"duration"`
	Status      string    `json:"status"`
	EndedReason string    `json:"endedReason,omitempty"`
	Cost        float64   `json:"cost"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Stats struct {
	AssistantID            string  `json:"assistantId"`
	TotalCalls             int     `json:"totalCalls"`
	SuccessfulCalls        int     `json:"successfulCalls"`
	SuccessRate            int     `json:"successRate"`
	AverageDurationMinutes float64 `json:"averageDurationMinutes"`
	TodayCalls             int     `json:"todayCalls"`
	RecentCalls            []Call  `json:"recentCalls"`
}

func (c *Client) DashboardStats(ctx context.Context) (Stats, error) {
	var s Stats
	err := c.Do(ctx, http.MethodGet, "/api/dashboard/stats", nil, &s)
	return s, err
}

type AgentForm struct {
	AgentName    string   `json:"agentName"`
	AgentVoice   string   `json:"agentVoice"`
	FirstMessage string   `json:"firstMessage"`
	SystemPrompt string   `json:"systemPrompt"`
	Model        string   `json:"model,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
}

// Agent is the provisioning answer, shared with sibling backends.
type Agent struct {
	AgentID             string `json:"agentId"`
	VapiAssistantID     string `json:"vapiAssistantId"`
	AssignedPhoneNumber string `json:"assignedPhoneNumber,omitempty"`
	WhatsappNumber      string `json:"whatsappNumber,omitempty"`
	Status              string `json:"status,omitempty"`
	LastError           string `json:"lastError,omitempty"`
}

// ProvisionAgent creates the caller's agent and caches it under agentData.
func (c *Client) ProvisionAgent(ctx context.Context, form AgentForm) (Agent, error) {
	var a Agent
	if err := c.Do(ctx, http.MethodPost, "/api/agents", form, &a); err != nil {
		return Agent{}, err
	}
	if b, err := json.Marshal(a); err == nil {
		_ = c.Store.Set(map[string]string{KeyAgentData: string(b)})
	}
	return a, nil
}

// BackendAgentRequest is the body of a sibling backend's agent creation endpoint.
type BackendAgentRequest struct {
	ClientID string `json:"clientId"`
	Plan     string `json:"plan,omitempty"`
	AgentForm
}

// CreateBackendAgent calls POST /api/agents/create on a sibling backend.
func (c *Client) CreateBackendAgent(ctx context.Context, req BackendAgentRequest) (Agent, error) {
	var a Agent
	err := c.Do(ctx, http.MethodPost, "/api/agents/create", req, &a)
	return a, err
}
