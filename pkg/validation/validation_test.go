package validation

import (
	"errors"
	"testing"

	"marketplace-ledger/pkg/errutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type transfer struct {
	Amount   decimal.Decimal `json:"amount" binding:"required,gt=0"`
	Account  string          `json:"account_number" binding:"required,numeric,min=6,max=20"`
	Provider string          `json:"payment_provider" binding:"required,oneof=paystack flutterwave"`
}

func TestDecimalTags(t *testing.T) {
	v := New()

	require.NoError(t, v.Struct(transfer{Amount: decimal.RequireFromString("0.01"), Account: "0123456789", Provider: "paystack"}))

	err := v.Struct(transfer{Amount: decimal.RequireFromString("-5"), Account: "0123456789", Provider: "paystack"})
	require.Error(t, err)
	details := Details(err)
	require.Len(t, details, 1)
	require.Equal(t, "amount", details[0].Field)
	require.Equal(t, "must be greater than 0", details[0].Message)
}

func TestDetailsUseJSONNames(t *testing.T) {
	err := New().Struct(transfer{Amount: decimal.NewFromInt(10), Account: "12ab", Provider: "cash"})
	require.Error(t, err)

	fields := map[string]string{}
	for _, d := range Details(err) {
		fields[d.Field] = d.Message
	}
	require.Equal(t, "must contain digits only", fields["account_number"])
	require.Equal(t, "must be one of: paystack flutterwave", fields["payment_provider"])
}

func TestError(t *testing.T) {
	err := Error("invalid request body", errors.New("unexpected EOF"))
	require.True(t, errutil.IsStatus(err, errutil.StatusValidationFailed))

	be := errutil.As(err)
	require.Equal(t, []errutil.Detail{{Field: "body", Message: "unexpected EOF"}}, be.Details)
}

func TestRegister(t *testing.T) {
	require.NoError(t, Register())
}
