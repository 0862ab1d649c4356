package payout

import (
	"context"
	"time"

	"marketplace-ledger/pkg/db/option"
	"marketplace-ledger/pkg/repository"
	"marketplace-ledger/services/ledger"
	"marketplace-ledger/services/provider"
)

// history feeds the risk assessor from the provider and payout tables.
type history struct {
	providers *provider.Service
	payouts   repository.Repository[ledger.Payout]
}

func (h *history) IsVerified(ctx context.Context, providerID string) (bool, error) {
	return h.providers.IsVerified(ctx, providerID)
}

func (h *history) CountCompletedPayouts(ctx context.Context, providerID string) (int64, error) {
	return h.payouts.Count(ctx, &ledger.Payout{ProviderID: providerID, Status: ledger.PayoutCompleted})
}

func (h *history) CountFailedPayoutsSince(ctx context.Context, providerID string, since time.Time) (int64, error) {
	return h.payouts.Count(ctx, &ledger.Payout{ProviderID: providerID, Status: ledger.PayoutFailed},
		option.ApplyOperator(option.Condition{Field: "failed_at", Operator: option.GTE, Value: since}))
}
