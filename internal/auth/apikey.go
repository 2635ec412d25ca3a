package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderAPIKey carries the shared key on every authenticated request.
const HeaderAPIKey = "X-API-Key"

// APIKeyMiddleware rejects requests whose X-API-Key header does not
// match the configured key. An empty configured key disables the check,
// for local development only.
func APIKeyMiddleware(apiKey string) gin.HandlerFunc {
	key := []byte(apiKey)
	return func(c *gin.Context) {
		if len(key) == 0 {
			c.Next()
			return
		}

		provided := []byte(c.GetHeader(HeaderAPIKey))
		if subtle.ConstantTimeCompare(provided, key) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing or invalid API key",
			})
			return
		}

		c.Next()
	}
}
