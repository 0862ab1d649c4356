package ledger

import (
	"context"

	"marketplace-ledger/pkg/db/option"
	"marketplace-ledger/pkg/errutil"
	"marketplace-ledger/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// amountScale is the number of decimal places amounts are stored with. SUM
// over them comes back as a float on sqlite, so aggregates are rounded back.
const amountScale = 2

type Balance struct {
	ProviderID       string          `json:"provider_id"`
	Currency         string          `json:"currency"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	PendingPayouts   decimal.Decimal `json:"pending_payouts"`
	PendingClearance decimal.Decimal `json:"pending_clearance"`
}

// GetAvailableBalance aggregates a provider's balance for one currency. All
// sums are read in a single transaction so they describe the same snapshot.
// The result is advisory: reservations re-check under a row lock.
func (s *Service) GetAvailableBalance(ctx context.Context, providerID, currency string) (*Balance, error) {
	if currency == "" {
		currency = s.DefaultCurrency()
	}

	out := &Balance{ProviderID: providerID, Currency: currency}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		earnings := s.earnings.WithTrx(tx)

		out.AvailableBalance, err = earnings.Sum(ctx, "amount",
			&Earning{ProviderID: providerID, Currency: currency, Status: EarningAvailable},
			option.ApplyOperator(option.Condition{Field: "payout_id", Operator: option.IsNull}),
		)
		if err != nil {
			return err
		}

		out.PendingClearance, err = earnings.Sum(ctx, "amount",
			&Earning{ProviderID: providerID, Currency: currency, Status: EarningPendingClearance})
		if err != nil {
			return err
		}

		out.PendingPayouts, err = s.payouts.WithTrx(tx).Sum(ctx, "amount",
			&Payout{ProviderID: providerID, Currency: currency},
			option.ApplyOperator(option.Condition{
				Field:    "status",
				Operator: option.IN,
				Value:    []string{string(PayoutRequested), string(PayoutProcessing)},
			}),
		)
		return err
	}, snapshotOptions(s.db)...)
	if err != nil {
		logger.FromContext(ctx).Error("failed to aggregate balance",
			zap.String("provider_id", providerID), zap.Error(err))
		return nil, errutil.Internal("failed to compute balance", err)
	}

	out.AvailableBalance = out.AvailableBalance.Round(amountScale)
	out.PendingClearance = out.PendingClearance.Round(amountScale)
	out.PendingPayouts = out.PendingPayouts.Round(amountScale)
	return out, nil
}
