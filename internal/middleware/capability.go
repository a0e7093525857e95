package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/coursebridge/backend/pkg/response"
)

// RequireCapability rejects callers whose token does not carry the named
// capability. Must run after JWTAuth.
func RequireCapability(capability string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get("capabilities")
		if !exists {
			response.Forbidden(c, "missing capabilities")
			c.Abort()
			return
		}
		capabilities, ok := value.([]string)
		if !ok {
			response.Forbidden(c, "missing capabilities")
			c.Abort()
			return
		}
		for _, granted := range capabilities {
			if granted == capability {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "capability required: "+capability)
		c.Abort()
	}
}
