// Package middleware contains Gin middleware functions. Each one calls
// c.Next() to proceed or aborts the chain with a JSON error body.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIKeyContextKey is where the auth middleware stores the caller's key.
const APIKeyContextKey = "api_key"

// APIKeyAuth returns middleware that validates client API keys sent in the
// X-API-Key header. With no keys configured every request is let through,
// which is how the service runs in local development.
func APIKeyAuth(validKeys []string) gin.HandlerFunc {
	keySet := toSet(validKeys)

	return func(c *gin.Context) {
		if len(keySet) == 0 {
			c.Next()
			return
		}

		key := c.GetHeader("X-API-Key")
		if key == "" {
			abortJSON(c, http.StatusUnauthorized, "missing API key")
			return
		}
		if _, ok := keySet[key]; !ok {
			abortJSON(c, http.StatusUnauthorized, "invalid API key")
			return
		}

		c.Set(APIKeyContextKey, key)
		c.Next()
	}
}

// AdminKeyAuth returns middleware that validates admin API keys. The key may
// also come from the api_key query param so photo URLs work in <img> tags.
// Admin endpoints are closed when no admin key is configured.
func AdminKeyAuth(adminKeys []string) gin.HandlerFunc {
	keySet := toSet(adminKeys)

	return func(c *gin.Context) {
		key := c.GetHeader("X-API-Key")
		if key == "" {
			key = c.Query("api_key")
		}

		if key == "" {
			abortJSON(c, http.StatusUnauthorized, "missing admin API key")
			return
		}
		if _, ok := keySet[key]; !ok {
			abortJSON(c, http.StatusForbidden, "invalid admin API key")
			return
		}

		c.Set(APIKeyContextKey, key)
		c.Next()
	}
}

// toSet builds a lookup set; map[string]struct{} values take no memory.
func toSet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}

// abortJSON stops the chain with the API's error envelope.
func abortJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
	})
}
