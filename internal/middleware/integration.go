package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const IntegrationKeyHeader = "X-Integration-Key"

// IntegrationKey admits the external checkout, auth and KYC systems. The
// shared key is compared against its bcrypt hash; an empty hash rejects
// every call.
func IntegrationKey(keyHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IntegrationKeyHeader)
		if key == "" || keyHash == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing integration key"})
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)) != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid integration key"})
			return
		}
		c.Set("integration", true)
		c.Next()
	}
}
