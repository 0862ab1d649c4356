package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var defaultConfig = Config{
	AmountThreshold:     decimal.NewFromInt(50_000),
	MinCompletedPayouts: 3,
	FailedLookback:      30 * 24 * time.Hour,
}

var trusted = Snapshot{Verified: true, CompletedPayouts: 3}

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name    string
		amount  int64
		snap    Snapshot
		factors []Factor
		auto    bool
	}{
		{"trusted provider", 3000, trusted, []Factor{}, true},
		{"over threshold alone", 60000, trusted, []Factor{AmountThresholdExceeded}, false},
		{"exactly at threshold", 50000, trusted, []Factor{}, true},
		{"unverified alone", 100, Snapshot{CompletedPayouts: 3}, []Factor{ProviderNotVerified}, true},
		{"short history alone", 100, Snapshot{Verified: true, CompletedPayouts: 2}, []Factor{InsufficientPayoutHistory}, true},
		{"recent failure alone", 100, Snapshot{Verified: true, CompletedPayouts: 5, RecentFailedPayouts: 1}, []Factor{RecentFailedPayouts}, true},
		{"two soft factors", 100, Snapshot{CompletedPayouts: 0}, []Factor{ProviderNotVerified, InsufficientPayoutHistory}, false},
		{
			"everything", 60000, Snapshot{RecentFailedPayouts: 2},
			[]Factor{AmountThresholdExceeded, ProviderNotVerified, InsufficientPayoutHistory, RecentFailedPayouts}, false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(decimal.NewFromInt(tc.amount), tc.snap, defaultConfig)
			require.Equal(t, tc.factors, got.RiskFactors)
			require.Equal(t, tc.auto, got.AutoApprove)
		})
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	snap := Snapshot{CompletedPayouts: 1, RecentFailedPayouts: 1}
	first := Evaluate(decimal.NewFromInt(70000), snap, defaultConfig)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Evaluate(decimal.NewFromInt(70000), snap, defaultConfig))
	}
}

type historyStub struct {
	verified  bool
	completed int64
	failed    int64
	since     time.Time
	err       error
}

func (h *historyStub) IsVerified(ctx context.Context, providerID string) (bool, error) {
	return h.verified, h.err
}

func (h *historyStub) CountCompletedPayouts(ctx context.Context, providerID string) (int64, error) {
	return h.completed, nil
}

func (h *historyStub) CountFailedPayoutsSince(ctx context.Context, providerID string, since time.Time) (int64, error) {
	h.since = since
	return h.failed, nil
}

func TestAssessorUsesLookbackWindow(t *testing.T) {
	now := time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC)
	h := &historyStub{verified: true, completed: 4, failed: 1}
	a := NewAssessor(h, defaultConfig)
	a.now = func() time.Time { return now }

	got, err := a.AssessPayoutRisk(context.Background(), "p1", decimal.NewFromInt(100))
	require.NoError(t, err)
	require.Equal(t, []Factor{RecentFailedPayouts}, got.RiskFactors)
	require.True(t, got.AutoApprove)
	require.Equal(t, now.Add(-30*24*time.Hour), h.since)
}

func TestAssessorPropagatesHistoryErrors(t *testing.T) {
	a := NewAssessor(&historyStub{err: errors.New("db down")}, defaultConfig)
	_, err := a.AssessPayoutRisk(context.Background(), "p1", decimal.NewFromInt(100))
	require.Error(t, err)
}
