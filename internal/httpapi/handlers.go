package httpapi

import (
	"context"
	"errors"
	"net/http"

	"voiceagent-platform/internal/agents"
	"voiceagent-platform/internal/auth"
	"voiceagent-platform/internal/calendar"
	"voiceagent-platform/internal/clients"
	"voiceagent-platform/internal/dashboard"
	"voiceagent-platform/internal/leads"
	"voiceagent-platform/internal/onboarding"
	"voiceagent-platform/internal/payment"
	"voiceagent-platform/internal/plans"
	"voiceagent-platform/internal/voice"
	"voiceagent-platform/internal/voiceai"
	"voiceagent-platform/pkg/logger"
	"voiceagent-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(utils.JSONFieldName)
	}
}

// ChatAPI is the text chat endpoint of the voice-AI provider.
type ChatAPI interface {
	Chat(ctx context.Context, assistantID, input, previousChatID string) (voiceai.ChatReply, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Sessions    *auth.SessionService
	Onboarding  *onboarding.Service
	Clients     clients.Repository
	Catalog     *plans.Catalog
	Payment     *payment.Service
	Provisioner *agents.Provisioner
	Settings    *agents.Settings
	Dashboard   *dashboard.Service
	Voice       *voice.Manager
	Hub         *voice.Hub
	Chat        ChatAPI
	Calendar    *calendar.Client
	Leads       *leads.Service

	DemoAssistantID string
	WebhookSecret   string

	// Ready reports dependency health for /health/ready.
	Ready func(ctx context.Context) error
}

type identity struct {
	UserID   string
	ClientID string
	Role     string
}

// caller reads the identity injected by auth.RequireAccessToken.
func caller(c *gin.Context) (identity, bool) {
	ctx := c.Request.Context()
	uid, err := auth.UserID(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return identity{}, false
	}
	cid, err := auth.ClientID(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "client_id required"})
		return identity{}, false
	}
	role, _ := auth.Role(ctx)
	return identity{UserID: uid, ClientID: cid, Role: role}, true
}

// bindJSON decodes the body and runs binding rules. On failure it writes
// the 400 response itself.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var ves validator.ValidationErrors
		if errors.As(err, &ves) {
			validationFailed(c, utils.FieldErrors(err))
			return false
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return false
	}
	return true
}

func validationFailed(c *gin.Context, fields map[string]string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
}

func notConfigured(c *gin.Context, what string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": what + " not configured"})
}

// writeError maps service errors onto status codes. Anything unrecognized
// is logged and reported as a 500 without detail.
func writeError(c *gin.Context, err error) {
	var (
		authErr   *auth.Error
		obValid   *onboarding.ValidationError
		leadValid *leads.ValidationError
		vaiErr    *voiceai.APIError
		calErr    *calendar.APIError
		ppErr     *payment.APIError
	)
	switch {
	case errors.As(err, &obValid):
		validationFailed(c, obValid.Fields)
	case errors.As(err, &leadValid):
		validationFailed(c, leadValid.Fields)
	case errors.As(err, &authErr):
		status := http.StatusUnauthorized
		switch authErr.Code {
		case auth.CodeTooManyRequests:
			status = http.StatusTooManyRequests
		case auth.CodeEmailInUse:
			status = http.StatusConflict
		case auth.CodeNotSupported:
			status = http.StatusNotImplemented
		}
		c.AbortWithStatusJSON(status, gin.H{"error": authErr.Message, "code": authErr.Code})

	case errors.Is(err, agents.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, agents.ErrNotFound), errors.Is(err, clients.ErrNotFound),
		errors.Is(err, voice.ErrNotFound), errors.Is(err, plans.ErrPlanNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, dashboard.ErrNoAssistant), errors.Is(err, voice.ErrNoAssistant):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no assistant configured"})

	case errors.Is(err, agents.ErrProvisioningInProgress), errors.Is(err, dashboard.ErrBusy):
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.Is(err, voice.ErrCallActive), errors.Is(err, agents.ErrNotRetryable),
		errors.Is(err, agents.ErrNotProvisioned), errors.Is(err, onboarding.ErrInvalidTransition),
		errors.Is(err, onboarding.ErrAgentStepNotReady), errors.Is(err, payment.ErrNoPaymentRequired):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, plans.ErrAmountMismatch), errors.Is(err, payment.ErrNotCompleted),
		errors.Is(err, payment.ErrOrderMismatch), errors.Is(err, payment.ErrAlreadyPaid):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, dashboard.ErrInvalidRequest),
		errors.Is(err, calendar.ErrMissingToken), errors.Is(err, calendar.ErrInvalidEvent):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, dashboard.ErrUpstream), errors.Is(err, voice.ErrUpstream),
		errors.Is(err, payment.ErrUpstream), errors.Is(err, agents.ErrProvisioningFailed),
		errors.As(err, &vaiErr), errors.As(err, &calErr), errors.As(err, &ppErr):
		logger.FromGin(c).Warn("upstream failure", "error", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "upstream service failed"})

	default:
		logger.FromGin(c).Error("request failed", "error", err)
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
