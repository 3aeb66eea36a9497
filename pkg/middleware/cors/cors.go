package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// New builds the CORS middleware. An empty allow list permits any origin;
// origins are compared case-insensitively with trailing slashes stripped.
func New(allowed []string) gin.HandlerFunc {
	allowSet := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		allowSet[normalize(origin)] = true
	}

	return func(c *gin.Context) {
		headers := c.Writer.Header()
		headers.Add("Vary", "Origin")

		origin := c.GetHeader("Origin")
		switch {
		case origin == "":
			if len(allowSet) == 0 {
				headers.Set("Access-Control-Allow-Origin", "*")
			}
		case len(allowSet) == 0 || allowSet[normalize(origin)]:
			headers.Set("Access-Control-Allow-Origin", origin)
		}
		headers.Set("Access-Control-Allow-Credentials", "true")
		headers.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With, X-Request-ID")
		headers.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		headers.Set("Access-Control-Max-Age", "600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func normalize(origin string) string {
	return strings.ToLower(strings.TrimRight(origin, "/"))
}
