package middleware

import (
	"net/http"
	"strings"

	"huddle_backend/internal/logger"
	"huddle_backend/pkg/apperrors"
	"huddle_backend/pkg/contextkeys"

	"github.com/gin-gonic/gin"
)

// TokenVerifier is the identity provider port: it turns a bearer token into a caller id.
type TokenVerifier interface {
	ParseToken(token string) (string, error)
}

// AuthMiddleware verifies the bearer token and stores the caller id under contextkeys.UserIDKey.
// A ?token= query parameter is accepted for websocket upgrades.
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			apperrors.HandleError(c, apperrors.NewUnauthorizedError("Authorization header missing or invalid"))
			return
		}

		userID, err := verifier.ParseToken(tokenStr)
		if err != nil {
			logger.CtxWarn(c.Request.Context(), "token rejected", "error", err.Error())
			apperrors.HandleError(c, apperrors.New(apperrors.CodeInvalidToken, "auth", "Invalid token", http.StatusUnauthorized))
			return
		}

		c.Set(contextkeys.UserIDKey, userID)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return c.Query("token")
}

// GetUserID returns the caller id set by AuthMiddleware, or "".
func GetUserID(c *gin.Context) string {
	userID, exists := c.Get(contextkeys.UserIDKey)
	if !exists {
		return ""
	}

	id, ok := userID.(string)
	if !ok {
		return ""
	}

	return id
}
