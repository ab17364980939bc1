package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"experienceboard/internal/identity"
	"experienceboard/internal/pkg/jwtutil"
	"experienceboard/internal/platform/logger"
	"experienceboard/internal/transport/http/response"
)

const (
	ContextUserIDKey = "user_id"
	ContextEmailKey  = "email"
	ContextClaimsKey = "claims"
)

type SessionState interface {
	Revoked(tokenID string) bool
	Revoke(ctx context.Context, userID, tokenID string, expiresAt time.Time) error
}

// AuthJWT admits requests carrying a valid, unrevoked token whose e-mail still
// passes the domain gate. A token that fails the gate is revoked on the spot.
func AuthJWT(secret string, sessions SessionState, gate identity.DomainGate, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing authorization header")
			c.Abort()
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid authorization scheme")
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		if sessions.Revoked(claims.TokenID()) {
			response.Error(c, http.StatusUnauthorized, response.CodeTokenRevoked, "session signed out, please sign in again")
			c.Abort()
			return
		}

		if !gate.Allows(claims.Email) {
			if err := sessions.Revoke(c.Request.Context(), claims.UserID, claims.TokenID(), claims.ExpiresAt.Time); err != nil {
				log.Warn("forced sign-out failed", "user_id", claims.UserID, "error", err)
			}
			response.Error(c, http.StatusUnauthorized, response.CodeDomainNotAllowed, "only "+gate.Domain()+" accounts can use this service")
			c.Abort()
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextEmailKey, claims.Email)
		c.Set(ContextClaimsKey, claims)
		c.Next()
	}
}

// UserID returns the authenticated user id, or "" outside AuthJWT.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserIDKey)
}

func Claims(c *gin.Context) *jwtutil.Claims {
	v, ok := c.Get(ContextClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*jwtutil.Claims)
	return claims
}
