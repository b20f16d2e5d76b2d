package meta

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vaultgate/internal/pkg/response"
)

// ServerVersion is the Bitwarden server version we present to clients.
// Clients gate features on it, so it tracks the upstream release cadence.
const ServerVersion = "2025.6.0"

type Handler struct {
	totpEnabled bool
}

func NewHandler(totpEnabled bool) *Handler {
	return &Handler{totpEnabled: totpEnabled}
}

// RegisterPublicRoutes registers the unauthenticated discovery endpoints.
func (h *Handler) RegisterPublicRoutes(r *gin.Engine) {
	r.GET("/api/config", h.Config)
	r.GET("/api/version", h.Version)
	r.GET("/api/alive", h.Alive)
}

// RegisterRoutes registers authenticated compatibility endpoints official
// clients poll but a single-tenant server has no real data for.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/two-factor", h.TwoFactorProviders)
	rg.GET("/sends", h.EmptyList)
	rg.GET("/settings/domains", h.Domains)
	rg.PUT("/settings/domains", h.Domains)
	rg.GET("/organizations", h.EmptyList)
	rg.GET("/collections", h.EmptyList)
	rg.GET("/policies", h.EmptyList)
	rg.GET("/auth-requests", h.EmptyList)
}

func (h *Handler) Config(c *gin.Context) {
	base := requestBaseURL(c)
	response.JSON(c, http.StatusOK, gin.H{
		"version": ServerVersion,
		"gitHash": nil,
		"server": gin.H{
			"name": "vaultgate",
			"url":  base,
		},
		"environment": gin.H{
			"cloudRegion":   nil,
			"vault":         base,
			"api":           base + "/api",
			"identity":      base + "/identity",
			"notifications": base + "/notifications",
			"sso":           "",
			"events":        "",
		},
		"featureStates": gin.H{},
		"object":        "config",
	})
}

func (h *Handler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, ServerVersion)
}

func (h *Handler) Alive(c *gin.Context) {
	c.Status(http.StatusOK)
}

func (h *Handler) TwoFactorProviders(c *gin.Context) {
	providers := []gin.H{}
	if h.totpEnabled {
		providers = append(providers, gin.H{
			"type":    0,
			"enabled": true,
			"object":  "twoFactorProvider",
		})
	}
	response.List(c, providers)
}

func (h *Handler) EmptyList(c *gin.Context) {
	response.List(c, []any{})
}

func (h *Handler) Domains(c *gin.Context) {
	response.JSON(c, http.StatusOK, gin.H{
		"equivalentDomains":       nil,
		"globalEquivalentDomains": []any{},
		"object":                  "domains",
	})
}

func requestBaseURL(c *gin.Context) string {
	scheme := "http"
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}
