package middleware

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS admits the browser-extension origins Bitwarden clients run from,
// plus any extra origins configured via CORS_ALLOWED_ORIGINS.
func CORS() gin.HandlerFunc {
	allowedOrigins := map[string]bool{
		"chrome-extension://nngceckbapebfimnlniiiahkandclblb": true,
		"moz-extension://":       true, // prefix match below, hash differs per install
		"http://localhost:8080":  true,
		"https://localhost:8080": true,
	}

	// Example: CORS_ALLOWED_ORIGINS=https://vault.example.com,https://web.example.com
	if extra := os.Getenv("CORS_ALLOWED_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins[o] = true
			}
		}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		if origin != "" && (allowedOrigins[origin] || strings.HasPrefix(origin, "moz-extension://")) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		c.Writer.Header().Set("Access-Control-Allow-Headers",
			"Content-Type, Content-Length, Authorization, Accept, Origin, Device-Type, Bitwarden-Client-Name, Bitwarden-Client-Version")
		c.Writer.Header().Set("Access-Control-Allow-Methods",
			"GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Max-Age", "600")

		// Preflight must resolve before auth middleware runs.
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
