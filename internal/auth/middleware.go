package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "
const accessTokenParam = "access_token"

// ActiveTokenChecker reports whether an access token is still the one stored
// for the user. It makes logout effective before the token expires.
type ActiveTokenChecker interface {
	IsActiveAccessToken(ctx context.Context, userID, token string) (bool, error)
}

// RequireAccessToken verifies an access token and injects identity into request context.
// checker may be nil, in which case only the signature and claims are verified.
// RBAC checks belong to internal/rbac.
func RequireAccessToken(m *Manager, checker ActiveTokenChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := BearerToken(c.GetHeader(authorizationHeader))
		if !ok && isWebSocketUpgrade(c.Request) {
			// browsers cannot set headers on a websocket handshake
			tok = c.Query(accessTokenParam)
			ok = tok != ""
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := m.Verify(tok, TokenTypeAccess, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if checker != nil {
			active, err := checker.IsActiveAccessToken(c.Request.Context(), claims.UserID, tok)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
				return
			}
			if !active {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
				return
			}
		}

		ctx := WithIdentity(c.Request.Context(), claims.UserID, claims.ClientID, claims.Role)
		c.Request = c.Request.WithContext(ctx)

		c.Set("user_id", claims.UserID)
		c.Set("client_id", claims.ClientID)
		c.Set("role", claims.Role)

		c.Next()
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	raw := strings.TrimSpace(header)
	if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(raw, bearerPrefix))
	return tok, tok != ""
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
