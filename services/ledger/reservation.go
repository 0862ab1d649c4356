package ledger

import (
	"context"
	"errors"

	"marketplace-ledger/pkg/db/option"
	"marketplace-ledger/pkg/errutil"
	"marketplace-ledger/pkg/featureflags"
	"marketplace-ledger/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StrategyFor returns the reservation strategy for a provider. Greedy is the
// default; the exact variant is enabled by PAYOUT_EXACT_RESERVATION or the
// per-provider exact_reservation flag.
func (s *Service) StrategyFor(ctx context.Context, providerID string) Strategy {
	exact := s.cfg.Payout.ExactReservation
	if s.flags != nil {
		exact = s.flags.Enabled(ctx, providerID, featureflags.ExactReservation, exact)
	}
	if exact {
		return ExactSubset{Limit: s.cfg.Payout.ExactReservationLimit}
	}
	return Greedy{}
}

// ReserveEarningsForPayout marks earnings summing exactly to amount as
// PAID_OUT against payoutID. Nothing changes when it fails.
func (s *Service) ReserveEarningsForPayout(ctx context.Context, providerID, payoutID string, amount decimal.Decimal, currency string) ([]*Earning, error) {
	return s.ReserveEarningsForPayoutTx(ctx, s.db, providerID, payoutID, amount, currency)
}

// ReserveEarningsForPayoutTx runs the reservation inside tx. When tx is
// already a transaction the work happens under a savepoint, so a failed
// reservation leaves the caller's transaction usable.
func (s *Service) ReserveEarningsForPayoutTx(ctx context.Context, tx *gorm.DB, providerID, payoutID string, amount decimal.Decimal, currency string) ([]*Earning, error) {
	if !amount.IsPositive() {
		return nil, errutil.ValidationFailed("amount must be positive", nil)
	}
	if currency == "" {
		currency = s.DefaultCurrency()
	}

	log := logger.FromContext(ctx).With(
		zap.String("provider_id", providerID),
		zap.String("payout_id", payoutID),
		zap.String("amount", amount.StringFixed(2)),
	)
	strategy := s.StrategyFor(ctx, providerID)

	var selected []*Earning
	err := tx.Transaction(func(tx *gorm.DB) error {
		if err := s.providers.Lock(ctx, tx, providerID); err != nil {
			return err
		}

		earnings := s.earnings.WithTrx(tx)
		candidates, err := earnings.Find(ctx,
			&Earning{ProviderID: providerID, Currency: currency, Status: EarningAvailable},
			option.ApplyOperator(option.Condition{Field: "payout_id", Operator: option.IsNull}),
			option.WithSortBy(
				option.QuerySortBy{SortBy: "cleared_at", OrderBy: "asc"},
				option.QuerySortBy{SortBy: "id", OrderBy: "asc"},
			),
			option.WithLockingUpdate(),
		)
		if err != nil {
			return err
		}

		var ok bool
		selected, ok = strategy.Select(candidates, amount)
		if !ok {
			return ErrInsufficientEarnings
		}

		ids := make([]string, 0, len(selected))
		for _, e := range selected {
			ids = append(ids, e.ID)
		}

		n, err := earnings.UpdateWhere(ctx,
			map[string]any{
				"status":    EarningPaidOut,
				"payout_id": payoutID,
			},
			option.ApplyOperator(
				option.Condition{Field: "id", Operator: option.IN, Value: ids},
				option.Condition{Field: "provider_id", Operator: option.EQ, Value: providerID},
				option.Condition{Field: "status", Operator: option.EQ, Value: EarningAvailable},
				option.Condition{Field: "payout_id", Operator: option.IsNull},
			),
		)
		if err != nil {
			return err
		}
		if n != int64(len(ids)) {
			// another reservation took one of the rows first
			return ErrInsufficientEarnings
		}

		for _, e := range selected {
			e.Status = EarningPaidOut
			e.PayoutID = &payoutID
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientEarnings) {
			reservationsTotal.WithLabelValues(strategy.Name(), "insufficient").Inc()
			log.Warn("reservation failed", zap.String("strategy", strategy.Name()))
			return nil, insufficientEarnings()
		}
		reservationsTotal.WithLabelValues(strategy.Name(), "error").Inc()
		log.Error("reservation error", zap.Error(err))
		return nil, errutil.Internal("failed to reserve earnings", err)
	}

	reservationsTotal.WithLabelValues(strategy.Name(), "reserved").Inc()
	log.Info("earnings reserved", zap.Int("count", len(selected)), zap.String("strategy", strategy.Name()))
	return selected, nil
}

// ReleaseEarningsTx returns every earning reserved by payoutID to AVAILABLE.
// It is the only path out of PAID_OUT.
func (s *Service) ReleaseEarningsTx(ctx context.Context, tx *gorm.DB, payoutID string) (int64, error) {
	n, err := s.earnings.WithTrx(tx).UpdateWhere(ctx,
		map[string]any{
			"status":    EarningAvailable,
			"payout_id": nil,
		},
		option.ApplyOperator(
			option.Condition{Field: "payout_id", Operator: option.EQ, Value: payoutID},
			option.Condition{Field: "status", Operator: option.EQ, Value: EarningPaidOut},
		),
	)
	if err != nil {
		return 0, err
	}

	releasedEarningsTotal.Add(float64(n))
	if n > 0 {
		logger.FromContext(ctx).Info("reserved earnings released",
			zap.String("payout_id", payoutID), zap.Int64("count", n))
	}
	return n, nil
}

type ReservedSummary struct {
	PayoutID string          `json:"-"`
	Count    int64           `json:"count"`
	Total    decimal.Decimal `json:"total"`
}

// ReservedSummaries groups the earnings reserved by each payout.
func (s *Service) ReservedSummaries(ctx context.Context, payoutIDs []string) (map[string]ReservedSummary, error) {
	out := make(map[string]ReservedSummary, len(payoutIDs))
	if len(payoutIDs) == 0 {
		return out, nil
	}

	var rows []ReservedSummary
	err := s.db.WithContext(ctx).Model(&Earning{}).
		Select("payout_id, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
		Where("payout_id IN ?", payoutIDs).
		Group("payout_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		r.Total = r.Total.Round(amountScale)
		out[r.PayoutID] = r
	}
	return out, nil
}
