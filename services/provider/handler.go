package provider

import (
	"net/http"

	"marketplace-ledger/pkg/errutil"
	"marketplace-ledger/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc  *Service
	auth *middleware.Authenticator
}

func NewHandler(svc *Service, auth *middleware.Authenticator) *Handler {
	return &Handler{svc: svc, auth: auth}
}

func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	admin := api.Group("/admin", h.auth.Authenticate(), middleware.RequireRole(middleware.RoleAdmin))
	admin.PUT("/providers/:providerId/verification", h.SetVerification)
}

type verificationRequest struct {
	Verified *bool `json:"verified" binding:"required"`
}

func (h *Handler) SetVerification(c *gin.Context) {
	var req verificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.ValidationFailed("invalid request body", err))
		return
	}

	p, _ := middleware.PrincipalFrom(c)
	provider, err := h.svc.SetVerification(c.Request.Context(), c.Param("providerId"), *req.Verified, p.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": provider})
}
