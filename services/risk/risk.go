package risk

import (
	"context"
	"time"

	"marketplace-ledger/pkg/config"

	"github.com/shopspring/decimal"
)

type Factor string

const (
	AmountThresholdExceeded   Factor = "AMOUNT_THRESHOLD_EXCEEDED"
	ProviderNotVerified       Factor = "PROVIDER_NOT_VERIFIED"
	InsufficientPayoutHistory Factor = "INSUFFICIENT_PAYOUT_HISTORY"
	RecentFailedPayouts       Factor = "RECENT_FAILED_PAYOUTS"
)

type Config struct {
	AmountThreshold     decimal.Decimal
	MinCompletedPayouts int64
	FailedLookback      time.Duration
}

func ConfigFrom(cfg *config.Config) Config {
	return Config{
		AmountThreshold:     decimal.NewFromFloat(cfg.Payout.AutoApproveThreshold),
		MinCompletedPayouts: cfg.Payout.MinCompletedPayouts,
		FailedLookback:      cfg.Payout.FailedLookback,
	}
}

// Snapshot is the provider history a decision is based on.
type Snapshot struct {
	Verified            bool
	CompletedPayouts    int64
	RecentFailedPayouts int64
}

type Assessment struct {
	AutoApprove bool     `json:"auto_approve"`
	RiskFactors []Factor `json:"risk_factors"`
}

// Evaluate applies every rule independently and decides. A single factor is
// tolerated unless it is the amount threshold, which always forces review.
func Evaluate(amount decimal.Decimal, snap Snapshot, cfg Config) Assessment {
	factors := make([]Factor, 0, 4)
	if amount.GreaterThan(cfg.AmountThreshold) {
		factors = append(factors, AmountThresholdExceeded)
	}
	if !snap.Verified {
		factors = append(factors, ProviderNotVerified)
	}
	if snap.CompletedPayouts < cfg.MinCompletedPayouts {
		factors = append(factors, InsufficientPayoutHistory)
	}
	if snap.RecentFailedPayouts > 0 {
		factors = append(factors, RecentFailedPayouts)
	}

	auto := len(factors) == 0 || (len(factors) == 1 && factors[0] != AmountThresholdExceeded)
	return Assessment{AutoApprove: auto, RiskFactors: factors}
}

// History reads the provider facts the rules need.
type History interface {
	IsVerified(ctx context.Context, providerID string) (bool, error)
	CountCompletedPayouts(ctx context.Context, providerID string) (int64, error)
	CountFailedPayoutsSince(ctx context.Context, providerID string, since time.Time) (int64, error)
}

type Assessor struct {
	history History
	cfg     Config
	now     func() time.Time
}

func NewAssessor(history History, cfg Config) *Assessor {
	return &Assessor{history: history, cfg: cfg, now: time.Now}
}

func (a *Assessor) Snapshot(ctx context.Context, providerID string) (Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	if snap.Verified, err = a.history.IsVerified(ctx, providerID); err != nil {
		return Snapshot{}, err
	}
	if snap.CompletedPayouts, err = a.history.CountCompletedPayouts(ctx, providerID); err != nil {
		return Snapshot{}, err
	}
	since := a.now().UTC().Add(-a.cfg.FailedLookback)
	if snap.RecentFailedPayouts, err = a.history.CountFailedPayoutsSince(ctx, providerID, since); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// AssessPayoutRisk has no side effects.
func (a *Assessor) AssessPayoutRisk(ctx context.Context, providerID string, amount decimal.Decimal) (Assessment, error) {
	snap, err := a.Snapshot(ctx, providerID)
	if err != nil {
		return Assessment{}, err
	}
	return Evaluate(amount, snap, a.cfg), nil
}
