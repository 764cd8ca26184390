package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"benchhub/pkg/config"
	"benchhub/pkg/logger"

	"github.com/gin-gonic/gin"
)

// BearerAuth guards the API group with the shared key from config. An empty
// key leaves the group open, which is the default for lab deployments.
func BearerAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := config.GlobalConfig.Server.APIKey
		if key == "" {
			c.Next()
			return
		}

		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(key)) != 1 {
			logger.WarnCtx(c.Request.Context(), "rejected request to %s: bad or missing API key", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Next()
	}
}
