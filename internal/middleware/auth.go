package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/press/internal/pkg/jwt"
	"github.com/mx-space/press/internal/pkg/response"
)

const (
	ContextKeyUserID = "user_id"
	ContextKeyClaims = "claims"

	// TokenCookie carries the token for browser sessions that cannot set headers.
	TokenCookie = "token"
)

// Auth returns a middleware that requires a valid token from the Authorization
// header or the token cookie. Query parameters are ignored so tokens stay out
// of access logs.
func Auth(tokens *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Unauthorized(c)
			return
		}
		claims, err := tokens.Parse(token)
		if err != nil {
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// RequireGroup rejects authenticated callers outside group. It must run after Auth.
func RequireGroup(group string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := CurrentClaims(c)
		if claims == nil {
			response.Unauthorized(c)
			return
		}
		if !claims.InGroup(group) {
			response.Forbidden(c)
			return
		}
		c.Next()
	}
}

// CurrentUserID extracts the authenticated user ID from context.
func CurrentUserID(c *gin.Context) string {
	v, _ := c.Get(ContextKeyUserID)
	id, _ := v.(string)
	return id
}

func CurrentClaims(c *gin.Context) *jwt.Claims {
	v, _ := c.Get(ContextKeyClaims)
	claims, _ := v.(*jwt.Claims)
	return claims
}

func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return NormalizeToken(auth)
	}
	cookie, err := c.Cookie(TokenCookie)
	if err != nil {
		return ""
	}
	return NormalizeToken(cookie)
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
