package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/coursebridge/backend/internal/auth"
	"github.com/coursebridge/backend/pkg/response"
)

// JWTAuth validates the bearer token and stores the caller's identity and
// capability list in the request context.
func JWTAuth(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set("client_id", claims.ClientID)
		c.Set("capabilities", claims.Capabilities)
		c.Next()
	}
}
