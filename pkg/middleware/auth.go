// Package middleware provides gin middleware for the gateway: bearer-token
// admission, CORS mirroring, request IDs and request logging.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-chat-gateway/pkg/apierror"
)

// KeyCheck validates an optional bearer token
type KeyCheck func(bearer *string) error

// BearerToken extracts the token from "Authorization: Bearer <token>".
// It returns nil when the header is missing, uses another scheme or carries
// an empty token.
func BearerToken(authHeader string) *string {
	if authHeader == "" {
		return nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return nil
	}
	return &token
}

// APIKeyAuth admits a request only when check accepts its bearer token
func APIKeyAuth(check KeyCheck, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := check(BearerToken(c.GetHeader("Authorization"))); err != nil {
			logger.Debug("Rejected request with invalid api key",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			apierror.Respond(c, err)
			return
		}

		c.Next()
	}
}
