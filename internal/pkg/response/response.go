// Package response renders the JSON shapes the official clients expect.
// Errors always carry OAuth-style fields plus an ErrorModel object; vault
// lists use the {data, object, continuationToken} envelope.
package response

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func JSON(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, data)
}

func Error(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":             message,
		"error_description": message,
		"ErrorModel": gin.H{
			"Message": message,
			"Object":  "error",
		},
	})
}

// IdentityError is the /identity/connect/token error shape: the OAuth error
// code is distinct from the human-readable description.
func IdentityError(c *gin.Context, statusCode int, errCode, message string) {
	c.JSON(statusCode, gin.H{
		"error":             errCode,
		"error_description": message,
		"ErrorModel": gin.H{
			"Message": message,
			"Object":  "error",
		},
	})
}

// TwoFactorRequired is not a hard failure: clients detect the sentinel
// provider list and branch into the 2FA prompt.
func TwoFactorRequired(c *gin.Context) {
	message := "Two factor required."
	c.JSON(http.StatusBadRequest, gin.H{
		"error":              "invalid_grant",
		"error_description":  message,
		"TwoFactorProviders": []int{0},
		"TwoFactorProviders2": gin.H{
			"0": nil,
		},
		"ErrorModel": gin.H{
			"Message": message,
			"Object":  "error",
		},
	})
}

func RateLimited(c *gin.Context, retryAfterSeconds int, message string) {
	c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
	c.Header("X-RateLimit-Remaining", "0")
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":             "Too many requests",
		"error_description": message,
	})
}

// List wraps items in the client list envelope. Pagination is not
// implemented server-side, so continuationToken is always null.
func List(c *gin.Context, items any) {
	c.JSON(http.StatusOK, gin.H{
		"data":              items,
		"object":            "list",
		"continuationToken": nil,
	})
}
