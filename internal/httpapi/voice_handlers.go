package httpapi

import (
	"io"
	"net/http"

	"voiceagent-platform/internal/voiceai"
	"voiceagent-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

type startCallRequest struct {
	AssistantID string `json:"assistantId"`
}

// StartCall opens a browser web call with the caller's assistant.
func (h Handlers) StartCall(c *gin.Context) {
	if h.Voice == nil {
		notConfigured(c, "voice")
		return
	}
	id, ok := caller(c)
	if !ok {
		return
	}
	var req startCallRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	// the assistant is always the caller's own; a supplied id must match it
	assistantID, err := h.Dashboard.ResolveAssistantID(ctx, id.UserID, id.ClientID)
	if err != nil {
		writeError(c, err)
		return
	}
	if req.AssistantID != "" && req.AssistantID != assistantID {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	s, err := h.Voice.Start(ctx, id.UserID, assistantID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

// EndCall is the single hang-up capability.
func (h Handlers) EndCall(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	s, err := h.Voice.End(c.Request.Context(), id.UserID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, s)
}

func (h Handlers) GetCall(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	s, err := h.Voice.Get(id.UserID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// VoiceEvents upgrades to a websocket that streams the caller's call state.
func (h Handlers) VoiceEvents(c *gin.Context) {
	if h.Hub == nil {
		notConfigured(c, "voice hub")
		return
	}
	id, ok := caller(c)
	if !ok {
		return
	}
	h.Hub.ServeWS(c.Writer, c.Request, id.UserID)
}

// VoiceWebhook receives server messages from the voice-AI provider.
func (h Handlers) VoiceWebhook(c *gin.Context) {
	log := logger.FromGin(c)
	if h.Voice == nil {
		notConfigured(c, "voice")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if err := voiceai.VerifyWebhook(h.WebhookSecret, c.GetHeader(voiceai.HeaderSignature), c.GetHeader(voiceai.HeaderSecret), body); err != nil {
		log.Warn("voice webhook rejected", "error", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}
	msg, err := voiceai.ParseServerMessage(body)
	if err != nil {
		log.Warn("voice webhook parse failed", "error", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid message"})
		return
	}

	// state errors are ours to log; the provider must not retry them
	if err := h.Voice.HandleEvent(c.Request.Context(), msg); err != nil {
		log.Warn("voice webhook not applied", "type", msg.Type, "call_id", msg.Call.ID, "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
