package httpapi

import (
	"net/http"
	"strconv"

	"voiceagent-platform/internal/leads"

	"github.com/gin-gonic/gin"
)

type chatRequest struct {
	Message string `json:"message" binding:"required,max=2000"`
	ChatID  string `json:"chatId"`
}

// ChatMessage relays the marketing page chat widget to the demo assistant.
func (h Handlers) ChatMessage(c *gin.Context) {
	if h.Chat == nil || h.DemoAssistantID == "" {
		notConfigured(c, "chatbot")
		return
	}
	var req chatRequest
	if !bindJSON(c, &req) {
		return
	}
	reply, err := h.Chat.Chat(c.Request.Context(), h.DemoAssistantID, req.Message, req.ChatID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply.Output, "chatId": reply.ID})
}

func (h Handlers) SubmitLead(c *gin.Context) {
	if h.Leads == nil {
		notConfigured(c, "leads")
		return
	}
	var form leads.Form
	if !bindJSON(c, &form) {
		return
	}
	l, err := h.Leads.Submit(c.Request.Context(), form)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": l.ID, "relayed": l.Relayed})
}

// ListLeads is admin only.
func (h Handlers) ListLeads(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := h.Leads.List(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leads": list})
}
