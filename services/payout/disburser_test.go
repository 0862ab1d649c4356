package payout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type captured struct {
	path   string
	header http.Header
	body   transferRequest
}

func gateway(t *testing.T, status int, body string) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.header = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&got.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func disburserFor(url string) Disburser {
	cfg := testConfig()
	cfg.Payout.DisbursementURL = url
	cfg.Payout.DisbursementAPIKey = "sk_test"
	cfg.Payout.DisbursementTimeout = 5 * time.Second
	return NewDisburser(cfg)
}

func payload() ProcessPayload {
	return ProcessPayload{
		PayoutID:   "1",
		ProviderID: "prov-a",
		Amount:     dec("1500"),
		Currency:   "NGN",
		BankDetails: BankDetailsPayload{
			AccountNumber:   "0123456789",
			AccountName:     "Ada Obi",
			BankCode:        "058",
			BankName:        "GTBank",
			PaymentProvider: "paystack",
		},
	}
}

func TestHTTPDisburserSuccess(t *testing.T) {
	srv, got := gateway(t, http.StatusOK, `{"status":"success","reference":"TRF_1"}`)

	res, err := disburserFor(srv.URL).Disburse(context.Background(), "PO-260101-001AB", payload())
	require.NoError(t, err)
	require.Equal(t, DisburseSucceeded, res.Status)
	require.Equal(t, "TRF_1", res.Reference)

	require.Equal(t, "/transfers", got.path)
	require.Equal(t, "Bearer sk_test", got.header.Get("Authorization"))
	require.Equal(t, "PO-260101-001AB", got.header.Get("Idempotency-Key"))
	require.Equal(t, "1500.00", got.body.Amount)
	require.Equal(t, "058", got.body.BankCode)
}

func TestHTTPDisburserOutcomes(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		permanent bool
		pending   bool
	}{
		{name: "pending", status: http.StatusAccepted, body: `{"status":"pending","reference":"TRF_2"}`, pending: true},
		{name: "unknown status is pending", status: http.StatusOK, body: `{"status":"queued"}`, pending: true},
		{name: "gateway failure", status: http.StatusOK, body: `{"status":"failed","message":"account closed"}`, permanent: true},
		{name: "bad request", status: http.StatusBadRequest, body: `{"message":"invalid bank code"}`, permanent: true},
		{name: "server error", status: http.StatusBadGateway, body: `upstream down`},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `slow down`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := gateway(t, tc.status, tc.body)
			res, err := disburserFor(srv.URL).Disburse(context.Background(), "PO-1", payload())

			switch {
			case tc.pending:
				require.NoError(t, err)
				require.Equal(t, DisbursePending, res.Status)
			case tc.permanent:
				require.ErrorIs(t, err, ErrPermanent)
			default:
				require.Error(t, err)
				require.NotErrorIs(t, err, ErrPermanent)
			}
		})
	}
}

func TestManualDisburser(t *testing.T) {
	d := NewDisburser(testConfig())
	res, err := d.Disburse(context.Background(), "PO-1", payload())
	require.NoError(t, err)
	require.Equal(t, DisbursePending, res.Status)
}
