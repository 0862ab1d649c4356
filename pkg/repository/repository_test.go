package repository

import (
	"context"
	"testing"
	"time"

	"marketplace-ledger/pkg/db/option"
	"marketplace-ledger/services/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID        string          `gorm:"primaryKey"`
	Owner     string          `gorm:"index"`
	Status    string
	Amount    decimal.Decimal `gorm:"type:numeric(12,2)"`
	Ref       *string
	CreatedAt time.Time
}

func seed(t *testing.T) Repository[item] {
	t.Helper()
	db := testutil.NewTestDB(t, &item{})
	repo := ProvideStore[item](db)

	require.NoError(t, repo.BatchCreate(context.Background(), []*item{
		{ID: "1", Owner: "a", Status: "AVAILABLE", Amount: decimal.RequireFromString("10.50")},
		{ID: "2", Owner: "a", Status: "AVAILABLE", Amount: decimal.RequireFromString("4.25")},
		{ID: "3", Owner: "a", Status: "PENDING", Amount: decimal.RequireFromString("100")},
		{ID: "4", Owner: "b", Status: "AVAILABLE", Amount: decimal.RequireFromString("7")},
	}))
	return repo
}

func TestFindOneMissingReturnsNil(t *testing.T) {
	repo := seed(t)

	got, err := repo.FindOne(context.Background(), &item{ID: "nope"})
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestFindWithOperatorsAndSort(t *testing.T) {
	repo := seed(t)

	got, err := repo.Find(context.Background(), &item{Owner: "a"},
		option.ApplyOperator(option.Condition{Field: "status", Operator: option.EQ, Value: "AVAILABLE"}),
		option.WithSortBy(option.QuerySortBy{SortBy: "amount", OrderBy: "desc", Allow: map[string]bool{"amount": true}}),
	)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "1", got[0].ID)
}

func TestSum(t *testing.T) {
	repo := seed(t)

	total, err := repo.Sum(context.Background(), "amount", &item{Owner: "a", Status: "AVAILABLE"})
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("14.75").Equal(total), total.String())

	none, err := repo.Sum(context.Background(), "amount", &item{Owner: "zzz"})
	require.NoError(t, err)
	require.True(t, none.IsZero())
}

func TestUpdateWhereReportsRowsAffected(t *testing.T) {
	repo := seed(t)
	ctx := context.Background()

	n, err := repo.UpdateWhere(ctx, map[string]any{"status": "RESERVED", "ref": "p1"},
		option.ApplyOperator(
			option.Condition{Field: "id", Operator: option.IN, Value: []string{"1", "2", "3"}},
			option.Condition{Field: "status", Operator: option.EQ, Value: "AVAILABLE"},
			option.Condition{Field: "ref", Operator: option.IsNull},
		))
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	count, err := repo.Count(ctx, &item{Status: "RESERVED"})
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	_, err = repo.UpdateWhere(ctx, map[string]any{"status": "X"})
	require.Error(t, err)
}

func TestUpdateMissingRow(t *testing.T) {
	repo := seed(t)
	err := repo.Update(context.Background(), "missing", map[string]any{"status": "X"})
	require.Error(t, err)
}
