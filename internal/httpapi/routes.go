package httpapi

import (
	"voiceagent-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// RouteOptions toggles optional surfaces.
type RouteOptions struct {
	// UnifiedAuthAlias mounts the auth routes again under /api/unified-auth.
	UnifiedAuthAlias bool
}

// Mount wires every route. Keep this free of business logic.
func (h Handlers) Mount(r gin.IRouter, authMW gin.HandlerFunc, opts RouteOptions) {
	r.GET("/healthz", Healthz)
	r.GET("/health/ready", h.Readyz)

	api := r.Group("/api")

	// public marketing surface
	api.GET("/plans", h.ListPlans)
	api.POST("/chatbot/message", h.ChatMessage)
	api.POST("/leads", h.SubmitLead)
	api.POST("/voice/webhook", h.VoiceWebhook)

	h.mountAuth(api.Group("/auth"), authMW)
	if opts.UnifiedAuthAlias {
		h.mountAuth(api.Group("/unified-auth"), authMW)
	}

	protected := api.Group("")
	protected.Use(authMW)

	admin := protected.Group("/admin")
	admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
	{
		admin.GET("/leads", h.ListLeads)
	}

	client := protected.Group("")
	client.Use(rbac.RequireClient())

	clients := client.Group("/clients/me")
	{
		clients.GET("", h.GetClient)
		clients.PUT("/plan", h.ChangePlan)
		clients.POST("/payment/checkout", h.Checkout)
		clients.POST("/payment/capture", h.CapturePayment)
		clients.GET("/onboarding", h.OnboardingState)
		clients.POST("/onboarding/agent-form", h.StartAgentForm)
	}

	ag := client.Group("/agents")
	{
		ag.POST("", h.CreateAgent)
		ag.POST("/create", h.CreateBackendAgent)
		ag.GET("", h.ListAgents)
		ag.GET("/:id", h.GetAgent)
		ag.POST("/:id/retry", h.RetryAgent)
		ag.PATCH("/:id/settings", h.UpdateAgentSettings)
		ag.GET("/:id/whatsapp", h.GetAgentWhatsApp)
		ag.PUT("/:id/whatsapp", h.PutAgentWhatsApp)
		ag.PUT("/:id/calendar", h.AttachCalendar)
	}

	client.GET("/whatsapp/settings", h.GetWhatsAppSettings)
	client.PUT("/whatsapp/settings", h.PutWhatsAppSettings)

	vc := client.Group("/voice")
	{
		vc.POST("/calls", h.StartCall)
		vc.GET("/calls/:id", h.GetCall)
		vc.DELETE("/calls/:id", h.EndCall)
		vc.GET("/ws", h.VoiceEvents)
	}

	client.GET("/dashboard/stats", h.DashboardStats)
	client.GET("/dashboard/calls", h.CallLogs)

	cal := client.Group("/calendar")
	{
		cal.GET("/calendars", h.ListCalendars)
		cal.GET("/events", h.ListEvents)
		cal.POST("/events", h.CreateEvent)
	}
}

func (h Handlers) mountAuth(g *gin.RouterGroup, authMW gin.HandlerFunc) {
	g.POST("/login", h.Login)
	g.POST("/register", h.Register)
	g.POST("/refresh", h.Refresh)
	g.POST("/password-reset", h.PasswordReset)
	g.POST("/resend-verification", h.ResendVerification)

	g.POST("/logout", authMW, h.Logout)
	g.GET("/me", authMW, h.Me)
}
