package payout

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"marketplace-ledger/pkg/errutil"
	"marketplace-ledger/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

const SignatureHeader = "X-Signature"

type webhookEvent struct {
	Reference         string `json:"reference" binding:"required"`
	Status            string `json:"status" binding:"required,oneof=success failed"`
	ProviderReference string `json:"provider_reference"`
	Reason            string `json:"reason"`
}

// Sign returns the hex HMAC-SHA256 of body, as sent in X-Signature.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func validSignature(secret, body []byte, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}

// PayoutWebhook settles pending disbursements reported by the gateway.
func (h *Handler) PayoutWebhook(c *gin.Context) {
	secret := []byte(h.svc.cfg.Payout.WebhookSecret)
	if len(secret) == 0 {
		_ = c.Error(errutil.ServiceUnavailable("payout webhook is not configured", nil))
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		_ = c.Error(errutil.BadRequest("failed to read body", err))
		return
	}
	if !validSignature(secret, body, c.GetHeader(SignatureHeader)) {
		_ = c.Error(errutil.Unauthorized("invalid signature", nil))
		return
	}

	var event webhookEvent
	if err := binding.JSON.BindBody(body, &event); err != nil {
		_ = c.Error(validation.Error("invalid webhook payload", err))
		return
	}

	ctx := c.Request.Context()
	payout, err := h.svc.GetPayoutByReference(ctx, event.Reference)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if event.Status == "success" {
		payout, err = h.svc.CompletePayout(ctx, payout.ID, event.ProviderReference)
	} else {
		reason := event.Reason
		if reason == "" {
			reason = "disbursement failed"
		}
		payout, err = h.svc.FailPayout(ctx, payout.ID, reason)
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	zap.L().Info("payout webhook processed", zap.String("reference", event.Reference), zap.String("status", event.Status))
	c.JSON(http.StatusOK, gin.H{"data": payout})
}
