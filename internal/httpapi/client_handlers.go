package httpapi

import (
	"net/http"
	"strings"

	"voiceagent-platform/internal/onboarding"

	"github.com/gin-gonic/gin"
)

func (h Handlers) GetClient(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	cl, err := h.Clients.Get(c.Request.Context(), id.ClientID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cl)
}

type planRequest struct {
	Plan string `json:"plan" binding:"required"`
}

// ChangePlan switches the client's plan. Moving to a paid plan does not
// charge here; the client goes back to pending payment and the dashboard
// sends the user through checkout.
func (h Handlers) ChangePlan(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	var req planRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.Catalog.Get(strings.ToLower(req.Plan))
	if err != nil {
		validationFailed(c, map[string]string{"plan": "Please choose a valid plan"})
		return
	}
	ctx := c.Request.Context()
	cl, err := h.Clients.Get(ctx, id.ClientID)
	if err != nil {
		writeError(c, err)
		return
	}
	if cl.Plan != p.ID {
		if err := h.Clients.UpdatePlan(ctx, id.ClientID, p.ID, !p.IsFree()); err != nil {
			writeError(c, err)
			return
		}
		if cl, err = h.Clients.Get(ctx, id.ClientID); err != nil {
			writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"plan": p, "status": cl.Status, "paymentStatus": cl.PaymentStatus})
}

func (h Handlers) ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": h.Catalog.List()})
}

type checkoutRequest struct {
	ReturnURL string `json:"returnUrl" binding:"omitempty,url"`
	CancelURL string `json:"cancelUrl" binding:"omitempty,url"`
}

func (h Handlers) Checkout(c *gin.Context) {
	if h.Payment == nil {
		notConfigured(c, "payment")
		return
	}
	id, ok := caller(c)
	if !ok {
		return
	}
	var req checkoutRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	o, err := h.Payment.Checkout(c.Request.Context(), id.ClientID, req.ReturnURL, req.CancelURL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

type captureRequest struct {
	OrderID string `json:"orderId" binding:"required"`
}

func (h Handlers) CapturePayment(c *gin.Context) {
	if h.Payment == nil {
		notConfigured(c, "payment")
		return
	}
	id, ok := caller(c)
	if !ok {
		return
	}
	var req captureRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.Payment.Capture(c.Request.Context(), id.ClientID, req.OrderID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) OnboardingState(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	st, err := h.Onboarding.State(c.Request.Context(), id.ClientID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"onboardingState": st})
}

// StartAgentForm moves a client from the success page to the agent form.
func (h Handlers) StartAgentForm(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	st, err := h.Onboarding.Advance(c.Request.Context(), id.ClientID, onboarding.StateAgentForm)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"onboardingState": st})
}
