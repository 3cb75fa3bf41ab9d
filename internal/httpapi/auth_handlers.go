package httpapi

import (
	"net/http"

	"voiceagent-platform/internal/onboarding"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login verifies credentials with the configured backend and returns the
// session token pair plus where the dashboard should navigate.
func (h Handlers) Login(c *gin.Context) {
	if h.Sessions == nil {
		notConfigured(c, "auth")
		return
	}
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.Sessions.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Register validates the sign-up form before touching the identity backend.
func (h Handlers) Register(c *gin.Context) {
	if h.Onboarding == nil {
		notConfigured(c, "onboarding")
		return
	}
	var form onboarding.RegistrationForm
	if !bindJSON(c, &form) {
		return
	}
	res, err := h.Onboarding.Register(c.Request.Context(), form)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (h Handlers) Refresh(c *gin.Context) {
	if h.Sessions == nil {
		notConfigured(c, "auth")
		return
	}
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	pair, err := h.Sessions.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h Handlers) Logout(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	next, err := h.Sessions.SignOut(c.Request.Context(), id.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"next": next})
}

// Me is the session restore probe.
func (h Handlers) Me(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	user, agent, err := h.Sessions.CurrentUser(c.Request.Context(), id.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "agentData": agent})
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (h Handlers) PasswordReset(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.Sessions.SendPasswordReset(c.Request.Context(), req.Email); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type resendRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h Handlers) ResendVerification(c *gin.Context) {
	var req resendRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.Sessions.ResendVerification(c.Request.Context(), req.Email, req.Password); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
