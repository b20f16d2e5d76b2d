package identity

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"vaultgate/internal/config"
	"vaultgate/internal/middleware"
	"vaultgate/internal/pkg/response"
)

type Handler struct {
	service *Service
	cfg     *config.Config
}

func NewHandler(service *Service, cfg *config.Config) *Handler {
	return &Handler{service: service, cfg: cfg}
}

// RegisterRoutes registers the unauthenticated identity endpoints.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/identity/connect/token", h.Token)
	r.POST("/identity/connect/revocation", h.Revocation)
	r.POST("/identity/connect/revoke", h.Revocation)
	r.POST("/identity/accounts/prelogin", h.Prelogin)
	r.GET("/api/devices/knowndevice", h.KnownDevice)
}

// RegisterProtectedRoutes registers the identity endpoints that need a
// session.
func (h *Handler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	rg.GET("/devices", h.Devices)
}

// Token handles both the password and the refresh_token grant. OAuth2 says
// form-encoded, but several clients post the same fields as JSON.
func (h *Handler) Token(c *gin.Context) {
	if issue := h.cfg.SigningSecretIssue(); issue != "" {
		response.IdentityError(c, http.StatusInternalServerError, "server_error",
			"Server signing secret is not configured safely")
		return
	}

	form := grantBody(c)
	switch form("grant_type") {
	case "password":
		h.passwordGrant(c, form)
	case "refresh_token":
		h.refreshGrant(c, form)
	default:
		response.IdentityError(c, http.StatusBadRequest, "unsupported_grant_type",
			"Only the password and refresh_token grants are supported")
	}
}

// grantBody returns a field accessor over the grant body, reading the form
// for urlencoded requests and a decoded object for JSON ones.
func grantBody(c *gin.Context) func(string) string {
	if !strings.Contains(c.ContentType(), "application/json") {
		return func(key string) string { return c.PostForm(key) }
	}
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		return func(string) string { return "" }
	}
	return func(key string) string {
		switch v := body[key].(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		}
		return ""
	}
}

func (h *Handler) passwordGrant(c *gin.Context, form func(string) string) {
	// Device fields can arrive in the grant body or, from some clients, in
	// headers.
	deviceTypeRaw := firstNonEmpty(form("deviceType"), c.GetHeader("Device-Type"))
	deviceType, _ := strconv.Atoi(deviceTypeRaw)
	req := PasswordGrantRequest{
		Username:          form("username"),
		Password:          form("password"),
		DeviceIdentifier:  firstNonEmpty(form("deviceIdentifier"), c.GetHeader("X-Device-Identifier")),
		DeviceName:        firstNonEmpty(form("deviceName"), c.GetHeader("X-Device-Name")),
		DeviceType:        deviceType,
		TwoFactorToken:    form("twoFactorToken"),
		TwoFactorProvider: form("twoFactorProvider"),
		TwoFactorRemember: rememberRequested(form("twoFactorRemember")),
	}
	if req.Username == "" || req.Password == "" {
		response.IdentityError(c, http.StatusBadRequest, "invalid_request",
			"username and password are required")
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req, middleware.ClientIP(c))
	if err != nil {
		h.loginError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp)
}

// rememberRequested parses the twoFactorRemember field; clients disagree on
// how to spell "yes" here.
func rememberRequested(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func (h *Handler) refreshGrant(c *gin.Context, form func(string) string) {
	resp, err := h.service.Refresh(c.Request.Context(), form("refresh_token"))
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			response.IdentityError(c, http.StatusBadRequest, "invalid_grant",
				"Refresh token is invalid or has already been used")
			return
		}
		c.Error(err)
		response.IdentityError(c, http.StatusInternalServerError, "server_error",
			"Login failed")
		return
	}
	response.JSON(c, http.StatusOK, resp)
}

func (h *Handler) loginError(c *gin.Context, err error) {
	var lockout *LockoutError
	switch {
	case errors.As(err, &lockout):
		response.RateLimited(c, int(lockout.RetryAfter.Seconds())+1,
			"Too many failed login attempts. Try again later.")
	case errors.Is(err, ErrInvalidCredentials):
		response.IdentityError(c, http.StatusBadRequest, "invalid_grant",
			"Username or password is incorrect. Try again.")
	case errors.Is(err, ErrTwoFactorRequired):
		response.TwoFactorRequired(c)
	case errors.Is(err, ErrInvalidTwoFactor):
		response.IdentityError(c, http.StatusBadRequest, "invalid_grant",
			"Two-step token is invalid. Try again.")
	case errors.Is(err, ErrUnsupportedTwoFactor):
		response.IdentityError(c, http.StatusBadRequest, "invalid_grant",
			"Unsupported two-factor provider.")
	default:
		c.Error(err)
		response.IdentityError(c, http.StatusInternalServerError, "server_error",
			"Login failed")
	}
}

// Revocation implements RFC 7009: always 200, even for unknown tokens.
func (h *Handler) Revocation(c *gin.Context) {
	if err := h.service.Revoke(c.Request.Context(), c.PostForm("token")); err != nil {
		c.Error(err)
	}
	c.Status(http.StatusOK)
}

// Prelogin returns the KDF parameters the client needs before hashing.
func (h *Handler) Prelogin(c *gin.Context) {
	var req PreloginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.IdentityError(c, http.StatusBadRequest, "invalid_request", "email is required")
		return
	}

	resp, err := h.service.Prelogin(c.Request.Context(), req.Email)
	if err != nil {
		c.Error(err)
		response.IdentityError(c, http.StatusInternalServerError, "server_error",
			"Prelogin failed")
		return
	}
	response.JSON(c, http.StatusOK, resp)
}

// Devices lists the account's known devices.
func (h *Handler) Devices(c *gin.Context) {
	devices, err := h.service.Devices(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		c.Error(err)
		response.IdentityError(c, http.StatusInternalServerError, "server_error",
			"Device lookup failed")
		return
	}
	response.List(c, devices)
}

// KnownDevice lets a client probe, pre-login, whether this device has been
// seen on the given account. The email arrives base64url-encoded in
// X-Request-Email. Answers a bare JSON boolean and never errors.
func (h *Handler) KnownDevice(c *gin.Context) {
	email := decodeProbeEmail(c.GetHeader("X-Request-Email"))
	known, err := h.service.KnownDevice(c.Request.Context(), email, c.GetHeader("X-Device-Identifier"))
	if err != nil {
		c.Error(err)
		known = false
	}
	c.JSON(http.StatusOK, known)
}

// decodeProbeEmail decodes the base64url email header; some clients send the
// address in the clear, so an undecodable value is used as-is.
func decodeProbeEmail(encoded string) string {
	if encoded == "" {
		return ""
	}
	if decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "=")); err == nil {
		return strings.ToLower(strings.TrimSpace(string(decoded)))
	}
	return strings.ToLower(strings.TrimSpace(encoded))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
