package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"studygroup-service/internal/apperr"
)

// UsernameKey is the gin context key holding the authenticated username.
const UsernameKey = "username"

// TokenKey holds the raw bearer token, used by logout.
const TokenKey = "token"

// Authenticator resolves a bearer token to a username.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// AuthMiddleware validates the Authorization header against the session store.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization", "code": apperr.CodeUnauthenticated})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header", "code": apperr.CodeUnauthenticated})
			return
		}

		token := strings.TrimSpace(parts[1])
		username, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			if apperr.Is(err, apperr.CodeUnauthenticated) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "code": apperr.CodeUnauthenticated})
				return
			}
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not validate token", "code": apperr.CodeInternal})
			return
		}

		c.Set(UsernameKey, username)
		c.Set(TokenKey, token)
		c.Next()
	}
}
