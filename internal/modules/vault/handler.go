package vault

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"vaultgate/internal/domain"
	"vaultgate/internal/middleware"
	"vaultgate/internal/modules/accounts"
	"vaultgate/internal/pkg/response"
)

type Handler struct {
	service  *Service
	accounts *accounts.Service
}

func NewHandler(service *Service, accountsService *accounts.Service) *Handler {
	return &Handler{service: service, accounts: accountsService}
}

// RegisterRoutes registers the authenticated vault endpoints. syncBudget is
// the sync-read limiter applied only to the expensive full snapshot.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, syncBudget gin.HandlerFunc) {
	rg.GET("/sync", syncBudget, h.Sync)

	ciphersGroup := rg.Group("/ciphers")
	{
		ciphersGroup.GET("", h.ListCiphers)
		ciphersGroup.POST("", h.CreateCipher)
		ciphersGroup.POST("/create", h.CreateCipherWrapped)
		ciphersGroup.POST("/import", h.Import)
		ciphersGroup.PUT("/move", h.MoveCiphers)
		ciphersGroup.POST("/move", h.MoveCiphers)
		ciphersGroup.PUT("/delete", h.SoftDeleteCiphers)
		ciphersGroup.GET("/:id", h.GetCipher)
		ciphersGroup.PUT("/:id", h.UpdateCipher)
		ciphersGroup.POST("/:id", h.UpdateCipher)
		ciphersGroup.DELETE("/:id", h.SoftDeleteCipher)
		ciphersGroup.GET("/:id/details", h.GetCipher)
		ciphersGroup.POST("/:id/share", h.GetCipher)
		ciphersGroup.PUT("/:id/partial", h.PartialUpdateCipher)
		ciphersGroup.POST("/:id/partial", h.PartialUpdateCipher)
		ciphersGroup.PUT("/:id/delete", h.SoftDeleteCipher)
		ciphersGroup.DELETE("/:id/delete", h.DeleteCipher)
		ciphersGroup.PUT("/:id/restore", h.RestoreCipher)
		ciphersGroup.POST("/:id/attachment", h.CreateAttachment)
		ciphersGroup.POST("/:id/attachment/v2", h.CreateAttachment)
		ciphersGroup.POST("/:id/attachment/:attachmentId", h.UploadAttachment)
		ciphersGroup.GET("/:id/attachment/:attachmentId", h.GetAttachment)
		ciphersGroup.DELETE("/:id/attachment/:attachmentId", h.DeleteAttachment)
		ciphersGroup.POST("/:id/attachment/:attachmentId/delete", h.DeleteAttachment)
	}

	foldersGroup := rg.Group("/folders")
	{
		foldersGroup.GET("", h.ListFolders)
		foldersGroup.POST("", h.CreateFolder)
		foldersGroup.GET("/:id", h.GetFolder)
		foldersGroup.PUT("/:id", h.UpdateFolder)
		foldersGroup.DELETE("/:id", h.DeleteFolder)
	}
}

// RegisterPublicRoutes registers the token-authenticated download endpoint.
// It must stay outside the JWT group: the one-time token in the URL is the
// whole credential.
func (h *Handler) RegisterPublicRoutes(r *gin.Engine) {
	r.GET("/api/attachments/:cipherId/:attachmentId", h.DownloadAttachment)
}

func (h *Handler) Sync(c *gin.Context) {
	user := currentUser(c)
	resp, err := h.service.Sync(c.Request.Context(), user.ID, h.accounts.Profile(user))
	if err != nil {
		c.Error(err)
		response.Error(c, http.StatusInternalServerError, "Sync failed.")
		return
	}
	response.JSON(c, http.StatusOK, resp)
}

func (h *Handler) CreateCipher(c *gin.Context) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, http.StatusBadRequest, "The model state is invalid.")
		return
	}
	h.createCipher(c, payload)
}

// CreateCipherWrapped accepts the {cipher, collectionIds} envelope newer
// clients send to /ciphers/create.
func (h *Handler) CreateCipherWrapped(c *gin.Context) {
	var req CreateCipherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "The model state is invalid.")
		return
	}
	h.createCipher(c, req.Cipher)
}

func (h *Handler) createCipher(c *gin.Context, payload map[string]any) {
	resp, err := h.service.CreateCipher(c.Request.Context(), c.GetString("user_id"), payload)
	if err != nil {
		c.Error(err)
		response.Error(c, http.StatusInternalServerError, "Saving the item failed.")
		return
	}
	response.JSON(c, http.StatusOK, resp)
}

func (h *Handler) GetCipher(c *gin.Context) {
	resp, err := h.service.GetCipher(c.Request.Context(), c.GetString("user_id"), c.Param("id"))
	if err != nil {
		h.vaultError(c, err, "Loading the item failed.")
		return
	}
	response.JSON(c, http.StatusOK, resp)
}

func (h *Handler) UpdateCipher(c *gin.Context) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, http.StatusBadRequest, "The model state is invalid.")
		return
	}
	resp, err := h.service.UpdateCipher(c.Request.Context(), c.GetString("user_id"), c.Param("id"), payload)
	if err != nil {
		h.vaultError(c, err, "Saving the item failed.")
		return
	}
	response.JSON(c, http.StatusOK, resp)
}

func (h *Handler) ListCiphers(c *gin.Context) {
	includeDeleted := c.Query("deleted") == "true"
	ciphers, err := h.service.ListCiphers(c.Request.Context(), c.GetString("user_id"), includeDeleted)
	if err != nil {
		h.vaultError(c, err, "Listing items failed.")
		return
	}
	response.List(c, ciphers)
}

func (h *Handler) PartialUpdateCipher(c *gin.Context) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, http.StatusBadRequest, "The model state is invalid.")
		return
	}
	resp, err := h.service.PartialUpdateCipher(c.Request.Context(), c.GetString("user_id"), c.Param("id"), payload)
	if err != nil {
		h.vaultError(c, err, "Updating the item failed.")
		return
	}
	response.JSON(c, http.StatusOK, resp)
}

// DeleteCipher is the permanent removal; trashing goes through
// SoftDeleteCipher.
func (h *Handler) DeleteCipher(c *gin.Context) {
	if err := h.service.DeleteCipher(c.Request.Context(), c.GetString("user_id"), c.Param("id")); err != nil {
		h.vaultError(c, err, "Deleting the item failed.")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) SoftDeleteCipher(c *gin.Context) {
	resp, err := h.service.SoftDeleteCipher(c.Request.Context(), c.GetString("user_id"), c.Param("id"))
	if err != nil {
		h.vaultError(c, err, "Deleting the item failed.")
		return
	}
	response.JSON(c, http.StatusOK, resp)
}

func (h *Handler) SoftDeleteCiphers(c *gin.Context) {
	var req BulkCipherIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "The model state is invalid.")
		return
	}
	if err := h.service.SoftDeleteCiphers(c.Request.Context(), c.GetString("user_id"), req.IDs); err != nil {
		h.vaultError(c, err, "Deleting the items failed.")
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) RestoreCipher(c *gin.Context) {
	resp, err := h.service.RestoreCipher(c.Request.Context(), c.GetString("user_id"), c.Param("id"))
	if err != nil {
		h.vaultError(c, err, "Restoring the item failed.")
		return
	}
	response.JSON(c, http.StatusOK, resp)
}

func (h *Handler) MoveCiphers(c *gin.Context) {
	var req MoveCiphersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "The model state is invalid.")
		return
	}
	if err := h.service.MoveCiphers(c.Request.Context(), c.GetString("user_id"), req); err != nil {
		c.Error(err)
		response.Error(c, http.StatusInternalServerError, "Moving the items failed.")
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) Import(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "The model state is invalid.")
		return
	}
	if err := h.service.Import(c.Request.Context(), c.GetString("user_id"), req); err != nil {
		c.Error(err)
		response.Error(c, http.StatusInternalServerError, "Import failed.")
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) ListFolders(c *gin.Context) {
	folders, err := h.service.ListFolders(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		c.Error(err)
		response.Error(c, http.StatusInternalServerError, "Loading folders failed.")
		return
	}
	response.List(c, folders)
}

func (h *Handler) GetFolder(c *gin.Context) {
	resp, err := h.service.GetFolder(c.Request.Context(), c.GetString("user_id"), c.Param("id"))
	if err != nil {
		h.vaultError(c, err, "Loading the folder failed.")
		return
	}
	response.JSON(c, http.StatusOK, resp)
}

func (h *Handler) CreateFolder(c *gin.Context) {
	var req FolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "The model state is invalid.")
		return
	}
	resp, err := h.service.CreateFolder(c.Request.Context(), c.GetString("user_id"), req)
	if err != nil {
		c.Error(err)
		response.Error(c, http.StatusInternalServerError, "Saving the folder failed.")
		return
	}
	response.JSON(c, http.StatusOK, resp)
}

func (h *Handler) UpdateFolder(c *gin.Context) {
	var req FolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "The model state is invalid.")
		return
	}
	resp, err := h.service.UpdateFolder(c.Request.Context(), c.GetString("user_id"), c.Param("id"), req)
	if err != nil {
		h.vaultError(c, err, "Saving the folder failed.")
		return
	}
	response.JSON(c, http.StatusOK, resp)
}

func (h *Handler) DeleteFolder(c *gin.Context) {
	if err := h.service.DeleteFolder(c.Request.Context(), c.GetString("user_id"), c.Param("id")); err != nil {
		h.vaultError(c, err, "Deleting the folder failed.")
		return
	}
	c.Status(http.StatusOK)
}

// CreateAttachment registers metadata and answers with the upload target.
// Served on both /attachment/v2 and the legacy /attachment path.
func (h *Handler) CreateAttachment(c *gin.Context) {
	var req AttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "fileName and key are required.")
		return
	}

	resp, err := h.service.CreateAttachment(c.Request.Context(),
		c.GetString("user_id"), c.Param("id"), req)
	if err != nil {
		h.vaultError(c, err, "Creating the attachment failed.")
		return
	}
	response.JSON(c, http.StatusOK, resp)
}

// UploadAttachment takes the multipart blob for previously registered
// metadata.
func (h *Handler) UploadAttachment(c *gin.Context) {
	file, err := c.FormFile("data")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "A file part named 'data' is required.")
		return
	}

	src, err := file.Open()
	if err != nil {
		c.Error(err)
		response.Error(c, http.StatusInternalServerError, "Reading the upload failed.")
		return
	}
	defer src.Close()

	err = h.service.UploadAttachment(c.Request.Context(),
		c.GetString("user_id"), c.Param("id"), c.Param("attachmentId"), src, file.Size)
	if err != nil {
		h.vaultError(c, err, "Saving the attachment failed.")
		return
	}
	c.Status(http.StatusOK)
}

// GetAttachment returns the attachment metadata plus a short-lived,
// single-use download URL.
func (h *Handler) GetAttachment(c *gin.Context) {
	cipherID, attachmentID := c.Param("id"), c.Param("attachmentId")
	attachment, downloadToken, err := h.service.AttachmentDownloadToken(
		c.Request.Context(), c.GetString("user_id"), cipherID, attachmentID)
	if err != nil {
		h.vaultError(c, err, "Loading the attachment failed.")
		return
	}

	url := fmt.Sprintf("%s://%s/api/attachments/%s/%s?token=%s",
		requestScheme(c), c.Request.Host, cipherID, attachmentID, downloadToken)
	response.JSON(c, http.StatusOK, attachmentResponse(attachment, url))
}

func (h *Handler) DeleteAttachment(c *gin.Context) {
	resp, err := h.service.DeleteAttachment(c.Request.Context(),
		c.GetString("user_id"), c.Param("id"), c.Param("attachmentId"))
	if err != nil {
		h.vaultError(c, err, "Deleting the attachment failed.")
		return
	}
	response.JSON(c, http.StatusOK, resp)
}

// DownloadAttachment streams the blob for a valid, unspent download token.
func (h *Handler) DownloadAttachment(c *gin.Context) {
	attachment, body, err := h.service.DownloadAttachment(c.Request.Context(),
		c.Param("cipherId"), c.Param("attachmentId"), c.Query("token"))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidFileToken):
			response.Error(c, http.StatusUnauthorized, "Invalid or expired download token.")
		case errors.Is(err, ErrFileTokenConsumed):
			response.Error(c, http.StatusUnauthorized, "Download token already used.")
		case errors.Is(err, ErrNotFound):
			response.Error(c, http.StatusNotFound, "Attachment not found.")
		default:
			c.Error(err)
			response.Error(c, http.StatusInternalServerError, "Download failed.")
		}
		return
	}
	defer body.Close()

	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(attachment.FileName))
	c.DataFromReader(http.StatusOK, attachment.Size, "application/octet-stream", body, nil)
}

func (h *Handler) vaultError(c *gin.Context, err error, fallback string) {
	if errors.Is(err, ErrNotFound) {
		response.Error(c, http.StatusNotFound, "Resource not found.")
		return
	}
	c.Error(err)
	response.Error(c, http.StatusInternalServerError, fallback)
}

func requestScheme(c *gin.Context) string {
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if c.Request.TLS != nil {
		return "https"
	}
	return "http"
}

func currentUser(c *gin.Context) *domain.User {
	return c.MustGet(middleware.ContextUserKey).(*domain.User)
}
