package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"vaultgate/internal/config"
	"vaultgate/internal/pkg/response"
	"vaultgate/internal/pkg/token"
	"vaultgate/internal/repository"
)

// ContextUserKey is where JWTAuth stores the loaded *domain.User.
const ContextUserKey = "user"

// JWTAuth validates the bearer access token and loads the account.
//
// Flow:
// 1. Refuses all protected traffic while the signing secret is unsafe.
// 2. Validates Authorization: Bearer <JWT> signature and expiry.
// 3. Loads the user and compares the token's security stamp against the
//    account's current stamp; a stale stamp means the token was issued
//    before a credential change and is no longer trusted.
// 4. Sets user_id, user_email and the full user in the Gin context.
func JWTAuth(tokens *token.Service, users *repository.UserRepository, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if issue := cfg.SigningSecretIssue(); issue != "" {
			response.IdentityError(c, http.StatusInternalServerError, "server_error",
				"Server signing secret is not configured safely")
			c.Abort()
			return
		}

		raw, ok := bearerToken(c)
		if !ok {
			response.IdentityError(c, http.StatusUnauthorized, "invalid_token",
				"Authorization header with a Bearer token is required")
			c.Abort()
			return
		}

		claims, err := tokens.ValidateAccessToken(raw)
		if err != nil {
			response.IdentityError(c, http.StatusUnauthorized, "invalid_token",
				"Invalid or expired access token")
			c.Abort()
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.Subject)
		if err != nil {
			if repository.IsNotFound(err) {
				response.IdentityError(c, http.StatusUnauthorized, "invalid_token",
					"Unknown account")
			} else {
				response.IdentityError(c, http.StatusInternalServerError, "server_error",
					"Failed to load account")
			}
			c.Abort()
			return
		}

		if claims.SecurityStamp != user.SecurityStamp {
			response.IdentityError(c, http.StatusUnauthorized, "invalid_token",
				"Access token has been revoked")
			c.Abort()
			return
		}

		c.Set("user_id", user.ID)
		c.Set("user_email", user.Email)
		c.Set(ContextUserKey, user)

		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// ClientIP prefers the first X-Forwarded-For entry so all replicas behind a
// proxy agree on the identifier used for lockouts and budgets.
func ClientIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		if first, _, found := strings.Cut(fwd, ","); found {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	return c.ClientIP()
}
