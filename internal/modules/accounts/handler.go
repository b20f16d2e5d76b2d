package accounts

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"vaultgate/internal/config"
	"vaultgate/internal/domain"
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

// RegisterPublicRoutes registers the endpoints that work without a session.
func (h *Handler) RegisterPublicRoutes(r *gin.Engine) {
	r.POST("/api/accounts/register", h.Register)
	r.POST("/identity/accounts/register", h.Register)
	r.GET("/", h.SetupStatus)
	r.GET("/setup/status", h.SetupStatus)
}

// RegisterRoutes registers the authenticated account endpoints.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	accountsGroup := rg.Group("/accounts")
	{
		accountsGroup.GET("/profile", h.Profile)
		accountsGroup.PUT("/profile", h.UpdateProfile)
		accountsGroup.POST("/profile", h.UpdateProfile)
		accountsGroup.POST("/keys", h.SetKeys)
		accountsGroup.POST("/password", h.ChangePassword)
		accountsGroup.POST("/verify-password", h.VerifyPassword)
		accountsGroup.GET("/revision-date", h.RevisionDate)
	}
}

func (h *Handler) Register(c *gin.Context) {
	if issue := h.cfg.SigningSecretIssue(); issue != "" {
		response.IdentityError(c, http.StatusInternalServerError, "server_error",
			"Server signing secret is not configured safely")
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "The model state is invalid.")
		return
	}

	_, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrRegistrationClosed):
			response.Error(c, http.StatusForbidden,
				"Registration is closed. This server hosts a single account.")
		case errors.Is(err, ErrInvalidKey):
			response.Error(c, http.StatusBadRequest,
				"The encrypted key payload is malformed.")
		default:
			c.Error(err)
			response.Error(c, http.StatusInternalServerError, "Registration failed.")
		}
		return
	}
	c.Status(http.StatusOK)
}

// SetupStatus answers the pre-setup probe. Registration closes permanently
// once the account exists, so registered doubles as disabled.
func (h *Handler) SetupStatus(c *gin.Context) {
	registered, err := h.service.Registered(c.Request.Context())
	if err != nil {
		c.Error(err)
		response.Error(c, http.StatusInternalServerError, "Status lookup failed.")
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"registered": registered,
		"disabled":   registered,
	})
}

func (h *Handler) Profile(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Profile(currentUser(c)))
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "The model state is invalid.")
		return
	}

	profile, err := h.service.UpdateProfile(c.Request.Context(), currentUser(c), req)
	if err != nil {
		c.Error(err)
		response.Error(c, http.StatusInternalServerError, "Profile update failed.")
		return
	}
	response.JSON(c, http.StatusOK, profile)
}

func (h *Handler) SetKeys(c *gin.Context) {
	var req SetKeysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "The model state is invalid.")
		return
	}

	profile, err := h.service.SetKeys(c.Request.Context(), currentUser(c), req)
	if err != nil {
		if errors.Is(err, ErrInvalidKey) {
			response.Error(c, http.StatusBadRequest, "The encrypted key payload is malformed.")
			return
		}
		c.Error(err)
		response.Error(c, http.StatusInternalServerError, "Storing keys failed.")
		return
	}
	response.JSON(c, http.StatusOK, profile)
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "The model state is invalid.")
		return
	}

	err := h.service.ChangePassword(c.Request.Context(), currentUser(c), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidPassword):
			response.Error(c, http.StatusBadRequest, "Invalid master password.")
		case errors.Is(err, ErrInvalidKey):
			response.Error(c, http.StatusBadRequest, "The encrypted key payload is malformed.")
		default:
			c.Error(err)
			response.Error(c, http.StatusInternalServerError, "Password change failed.")
		}
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) VerifyPassword(c *gin.Context) {
	var req VerifyPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "The model state is invalid.")
		return
	}

	if !h.service.VerifyPassword(currentUser(c), req.MasterPasswordHash) {
		response.Error(c, http.StatusBadRequest, "Invalid master password.")
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) RevisionDate(c *gin.Context) {
	millis, err := h.service.RevisionDate(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		c.Error(err)
		response.Error(c, http.StatusInternalServerError, "Revision lookup failed.")
		return
	}
	c.JSON(http.StatusOK, millis)
}

func currentUser(c *gin.Context) *domain.User {
	return c.MustGet(middleware.ContextUserKey).(*domain.User)
}
