package provider

import (
	"context"
	"testing"
	"time"

	"marketplace-ledger/services/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	db := testutil.NewTestDB(t, &Provider{})
	svc := NewService(ServiceParams{DB: db})
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestEnsureIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Ensure(ctx, "p1")
	require.NoError(t, err)
	require.False(t, first.Verified)

	second, err := svc.Ensure(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, svc.db.Model(&Provider{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestSetVerification(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	verified, err := svc.IsVerified(ctx, "p1")
	require.NoError(t, err)
	require.False(t, verified)

	p, err := svc.SetVerification(ctx, "p1", true, "admin-1")
	require.NoError(t, err)
	require.True(t, p.Verified)
	require.NotNil(t, p.VerifiedAt)
	require.Equal(t, "admin-1", p.VerifiedBy)

	verified, err = svc.IsVerified(ctx, "p1")
	require.NoError(t, err)
	require.True(t, verified)

	p, err = svc.SetVerification(ctx, "p1", false, "admin-2")
	require.NoError(t, err)
	require.False(t, p.Verified)
	require.Nil(t, p.VerifiedAt)
}

func TestLockCreatesMissingProvider(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	err := svc.db.Transaction(func(tx *gorm.DB) error {
		return svc.Lock(ctx, tx, "p9")
	})
	require.NoError(t, err)

	p, err := svc.providers.FindOne(ctx, &Provider{ID: "p9"})
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestEnsureRequiresID(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Ensure(context.Background(), "")
	require.Error(t, err)
}
