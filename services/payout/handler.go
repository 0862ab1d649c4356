package payout

import (
	"net/http"
	"strconv"

	"marketplace-ledger/pkg/db/pagination"
	"marketplace-ledger/pkg/errutil"
	"marketplace-ledger/pkg/middleware"
	"marketplace-ledger/pkg/validation"
	"marketplace-ledger/services/ledger"

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
	provider := api.Group("/provider/payouts", h.auth.Authenticate(), middleware.RequireRole(middleware.RoleProvider))
	provider.POST("", h.CreatePayout)
	provider.GET("", h.ListPayouts)
	provider.GET("/:payoutId", h.GetPayout)
	provider.POST("/:payoutId/cancel", h.CancelPayout)

	admin := api.Group("/admin/payouts", h.auth.Authenticate(), middleware.RequireRole(middleware.RoleAdmin))
	admin.GET("/review", h.ListForReview)
	admin.POST("/:payoutId/approve", h.ApprovePayout)
	admin.POST("/:payoutId/cancel", h.CancelPayout)

	api.POST("/webhooks/payouts", h.PayoutWebhook)
}

func (h *Handler) CreatePayout(c *gin.Context) {
	var req CreatePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(validation.Error("invalid request body", err))
		return
	}

	p, _ := middleware.PrincipalFrom(c)
	res, err := h.svc.CreatePayoutRequest(c.Request.Context(), p.ProviderID, req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	status := http.StatusCreated
	if res.Payout.Status == ledger.PayoutProcessing {
		status = http.StatusAccepted
	}
	c.JSON(status, gin.H{"data": res.Payout, "message": res.Message})
}

type listPayoutsQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=REQUESTED PROCESSING COMPLETED FAILED CANCELLED"`
	pagination.Pagination
}

func (h *Handler) ListPayouts(c *gin.Context) {
	var q listPayoutsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		_ = c.Error(validation.Error("invalid query", err))
		return
	}

	p, _ := middleware.PrincipalFrom(c)
	rows, page, err := h.svc.ListPayouts(c.Request.Context(), p.ProviderID, ListFilter{
		Status: ledger.PayoutStatus(q.Status),
		Cursor: q.Cursor,
		Limit:  q.Limit,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rows, "page_info": page})
}

func (h *Handler) GetPayout(c *gin.Context) {
	p, _ := middleware.PrincipalFrom(c)
	payout, err := h.svc.GetPayout(c.Request.Context(), p.ProviderID, c.Param("payoutId"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payout})
}

func (h *Handler) CancelPayout(c *gin.Context) {
	p, _ := middleware.PrincipalFrom(c)
	payout, err := h.svc.CancelPayout(c.Request.Context(), c.Param("payoutId"), Actor{
		ID:         p.UserID,
		ProviderID: p.ProviderID,
		Admin:      p.Role == middleware.RoleAdmin,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payout})
}

func (h *Handler) ListForReview(c *gin.Context) {
	limit := pagination.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			_ = c.Error(errutil.ValidationFailed("invalid limit", err))
			return
		}
		limit = n
	}

	rows, err := h.svc.ListPayoutsForReview(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func (h *Handler) ApprovePayout(c *gin.Context) {
	p, _ := middleware.PrincipalFrom(c)
	payout, err := h.svc.ApprovePayout(c.Request.Context(), c.Param("payoutId"), p.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payout, "message": MessageProcessing})
}
