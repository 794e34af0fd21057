package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Origin rejects cross-origin browser requests that are not on the
// allowlist. An empty allowlist or a request without an Origin header
// (non-browser client) passes through.
func Origin(allowed []string) gin.HandlerFunc {
	allowSet := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		allowSet[o] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" || len(allowSet) == 0 {
			c.Next()
			return
		}
		if _, ok := allowSet[origin]; !ok {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}
