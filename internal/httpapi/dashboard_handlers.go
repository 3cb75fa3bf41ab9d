package httpapi

import (
	"net/http"
	"strconv"

	"voiceagent-platform/internal/dashboard"

	"github.com/gin-gonic/gin"
)

func (h Handlers) statsRequest(c *gin.Context, id identity) dashboard.StatsRequest {
	req := dashboard.StatsRequest{UserID: id.UserID, ClientID: id.ClientID}
	if h.Clients != nil {
		if cl, err := h.Clients.Get(c.Request.Context(), id.ClientID); err == nil {
			req.Plan = cl.Plan
		}
	}
	return req
}

// DashboardStats computes call analytics from the provider's call history.
// Nothing is cached; every request is a fresh fetch.
func (h Handlers) DashboardStats(c *gin.Context) {
	if h.Dashboard == nil {
		notConfigured(c, "dashboard")
		return
	}
	id, ok := caller(c)
	if !ok {
		return
	}
	s, err := h.Dashboard.Stats(c.Request.Context(), h.statsRequest(c, id))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// CallLogs lists end-of-call reports stored from webhooks.
func (h Handlers) CallLogs(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := h.Dashboard.CallLogs(c.Request.Context(), h.statsRequest(c, id), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": list})
}
