package ledger

import (
	"net/http"
	"strings"

	"marketplace-ledger/pkg/db/pagination"
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
	provider := api.Group("/provider", h.auth.Authenticate(), middleware.RequireRole(middleware.RoleProvider))
	provider.GET("/balance", h.GetBalance)
	provider.GET("/earnings", h.ListEarnings)

	admin := api.Group("/admin", h.auth.Authenticate(), middleware.RequireRole(middleware.RoleAdmin))
	admin.POST("/earnings/:earningId/freeze", h.FreezeEarning)
}

func (h *Handler) GetBalance(c *gin.Context) {
	p, _ := middleware.PrincipalFrom(c)

	balance, err := h.svc.GetAvailableBalance(c.Request.Context(), p.ProviderID, strings.ToUpper(c.Query("currency")))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": balance})
}

type listEarningsQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=PENDING_CLEARANCE AVAILABLE PAID_OUT FROZEN"`
	pagination.Pagination
}

func (h *Handler) ListEarnings(c *gin.Context) {
	var q listEarningsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		_ = c.Error(errutil.ValidationFailed("invalid query", err))
		return
	}

	p, _ := middleware.PrincipalFrom(c)
	rows, page, err := h.svc.ListEarnings(c.Request.Context(), p.ProviderID, ListEarningsFilter{
		Status: EarningStatus(q.Status),
		Cursor: q.Cursor,
		Limit:  q.Limit,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rows, "page_info": page})
}

type freezeRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

func (h *Handler) FreezeEarning(c *gin.Context) {
	var req freezeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.ValidationFailed("invalid request body", err))
		return
	}

	earning, err := h.svc.FreezeEarning(c.Request.Context(), c.Param("earningId"), req.Reason)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": earning})
}
