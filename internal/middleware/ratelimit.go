package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vaultgate/internal/pkg/response"
	"vaultgate/internal/ratelimit"
)

// WriteBudget charges mutating requests against the per-identity write
// window. Reads pass through untouched. Must run after JWTAuth so the
// identifier can include the account.
func WriteBudget(engine *ratelimit.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}

		ok, retryAfter, err := engine.ConsumeWriteBudget(c.Request.Context(), budgetIdentifier(c))
		if err != nil {
			response.IdentityError(c, http.StatusInternalServerError, "server_error",
				"Rate limit check failed")
			c.Abort()
			return
		}
		if !ok {
			response.RateLimited(c, int(retryAfter), "Too many write requests. Slow down and retry.")
			c.Abort()
			return
		}

		c.Next()
	}
}

// SyncBudget charges full-vault sync reads against their own, much looser
// window so a misbehaving client cannot hammer the most expensive read.
func SyncBudget(engine *ratelimit.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, retryAfter, err := engine.ConsumeSyncReadBudget(c.Request.Context(), budgetIdentifier(c))
		if err != nil {
			response.IdentityError(c, http.StatusInternalServerError, "server_error",
				"Rate limit check failed")
			c.Abort()
			return
		}
		if !ok {
			response.RateLimited(c, int(retryAfter), "Too many sync requests. Slow down and retry.")
			c.Abort()
			return
		}

		c.Next()
	}
}

// budgetIdentifier keys windows by account and client address together, so
// one stolen token cannot burn the budget for the owner's other devices and
// one address cannot burn it across accounts.
func budgetIdentifier(c *gin.Context) string {
	return c.GetString("user_id") + ":" + ClientIP(c)
}
