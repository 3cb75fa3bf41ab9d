package httpapi

import (
	"errors"
	"net/http"

	"voiceagent-platform/internal/agents"
	"voiceagent-platform/internal/onboarding"
	"voiceagent-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// agentResponse is the provisioning answer. The top-level keys match what
// sibling backends return from their own agent creation endpoint.
func agentResponse(a agents.Agent, state onboarding.State) gin.H {
	out := gin.H{
		"agentId":             a.ID,
		"vapiAssistantId":     a.VapiAssistantID,
		"assignedPhoneNumber": a.AssignedPhoneNumber,
		"whatsappNumber":      a.WhatsappNumber,
		"status":              a.Status,
		"agent":               a,
	}
	if a.LastError != "" {
		out["lastError"] = a.LastError
	}
	if state != "" {
		out["onboardingState"] = state
	}
	return out
}

// provisioningFailed answers a strict-mode failure with the stored agent so
// the dashboard can offer a retry.
func provisioningFailed(c *gin.Context, a agents.Agent, state onboarding.State) {
	body := agentResponse(a, state)
	body["error"] = "agent provisioning failed"
	body["code"] = string(agents.StatusProvisioningFailed)
	c.AbortWithStatusJSON(http.StatusBadGateway, body)
}

// CreateAgent is the agent form submission of onboarding.
func (h Handlers) CreateAgent(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var form agents.Form
	if !bindJSON(c, &form) {
		return
	}
	a, state, err := h.Onboarding.SubmitAgent(c.Request.Context(), id.UserID, id.ClientID, form)
	if err != nil {
		if errors.Is(err, agents.ErrProvisioningFailed) && a.ID != "" {
			provisioningFailed(c, a, state)
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, agentResponse(a, state))
}

type backendAgentRequest struct {
	ClientID string `json:"clientId" binding:"required"`
	Plan     string `json:"plan"`
	agents.Form
}

// CreateBackendAgent serves POST /api/agents/create, the endpoint sibling
// deployments call when provisioning through this backend.
func (h Handlers) CreateBackendAgent(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var req backendAgentRequest
	if !bindJSON(c, &req) {
		return
	}
	if !rbac.OwnsClient(c, req.ClientID) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	plan := req.Plan
	if plan == "" {
		if cl, err := h.Clients.Get(c.Request.Context(), req.ClientID); err == nil {
			plan = cl.Plan
		}
	}
	a, err := h.Provisioner.Provision(c.Request.Context(), id.UserID, req.ClientID, plan, req.Form)
	if err != nil {
		if errors.Is(err, agents.ErrProvisioningFailed) && a.ID != "" {
			provisioningFailed(c, a, "")
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, agentResponse(a, ""))
}

func (h Handlers) ListAgents(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	list, err := h.Settings.List(c.Request.Context(), id.ClientID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": list})
}

func (h Handlers) GetAgent(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	a, err := h.Settings.Owned(c.Request.Context(), id.ClientID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h Handlers) RetryAgent(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	a, state, err := h.Onboarding.RetryAgent(c.Request.Context(), id.UserID, id.ClientID, c.Param("id"))
	if err != nil {
		if errors.Is(err, agents.ErrProvisioningFailed) && a.ID != "" {
			provisioningFailed(c, a, state)
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, agentResponse(a, state))
}

// UpdateAgentSettings patches the voice, model and prompt panels.
func (h Handlers) UpdateAgentSettings(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var patch agents.SettingsPatch
	if !bindJSON(c, &patch) {
		return
	}
	a, err := h.Settings.Update(c.Request.Context(), id.UserID, id.ClientID, c.Param("id"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

type whatsAppRequest struct {
	Enabled      bool   `json:"enabled"`
	BusinessName string `json:"businessName" binding:"max=120"`
	Greeting     string `json:"greeting" binding:"max=1000"`
	AutoReply    bool   `json:"autoReply"`
}

func (r whatsAppRequest) settings() agents.WhatsAppSettings {
	return agents.WhatsAppSettings{Enabled: r.Enabled, BusinessName: r.BusinessName, Greeting: r.Greeting, AutoReply: r.AutoReply}
}

func (h Handlers) PutAgentWhatsApp(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var req whatsAppRequest
	if !bindJSON(c, &req) {
		return
	}
	ws, err := h.Settings.SaveWhatsApp(c.Request.Context(), id.UserID, id.ClientID, c.Param("id"), req.settings())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

func (h Handlers) GetAgentWhatsApp(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	ws, err := h.Settings.WhatsApp(c.Request.Context(), id.ClientID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

// GetWhatsAppSettings and PutWhatsAppSettings act on the client's latest
// agent, for the dashboard panel that has no agent id in its path.
func (h Handlers) GetWhatsAppSettings(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	a, err := h.Settings.Latest(c.Request.Context(), id.ClientID)
	if err != nil {
		writeError(c, err)
		return
	}
	ws, err := h.Settings.WhatsApp(c.Request.Context(), id.ClientID, a.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

func (h Handlers) PutWhatsAppSettings(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var req whatsAppRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.Settings.Latest(c.Request.Context(), id.ClientID)
	if err != nil {
		writeError(c, err)
		return
	}
	ws, err := h.Settings.SaveWhatsApp(c.Request.Context(), id.UserID, id.ClientID, a.ID, req.settings())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

type calendarAttachRequest struct {
	CalendarID string `json:"calendarId" binding:"max=255"`
}

// AttachCalendar binds (or with an empty id, detaches) the booking calendar.
func (h Handlers) AttachCalendar(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var req calendarAttachRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.Settings.SetCalendar(c.Request.Context(), id.UserID, id.ClientID, c.Param("id"), req.CalendarID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}
