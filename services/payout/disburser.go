package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"marketplace-ledger/pkg/config"

	"go.uber.org/zap"
)

// ErrPermanent marks a disbursement the gateway rejected outright. Retrying
// it cannot succeed.
var ErrPermanent = errors.New("disbursement rejected")

type DisburseStatus string

const (
	DisburseSucceeded DisburseStatus = "success"
	DisbursePending   DisburseStatus = "pending"
)

type DisburseResult struct {
	Status    DisburseStatus `json:"status"`
	Reference string         `json:"reference"`
	Message   string         `json:"message,omitempty"`
}

// Disburser sends money to a provider's bank account. A pending result is
// settled later through the payout webhook.
type Disburser interface {
	Disburse(ctx context.Context, reference string, p ProcessPayload) (*DisburseResult, error)
}

type transferRequest struct {
	Reference       string `json:"reference"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	AccountNumber   string `json:"account_number"`
	AccountName     string `json:"account_name"`
	BankCode        string `json:"bank_code"`
	PaymentProvider string `json:"payment_provider"`
	Narration       string `json:"narration"`
}

type HTTPDisburser struct {
	url    string
	apiKey string
	client *http.Client
}

// NewDisburser talks to PAYOUT_DISBURSEMENT_URL. Without one every transfer
// is left pending for manual settlement.
func NewDisburser(cfg *config.Config) Disburser {
	if cfg.Payout.DisbursementURL == "" {
		zap.L().Warn("PAYOUT_DISBURSEMENT_URL not set, payouts will wait for manual settlement")
		return manualDisburser{}
	}
	return &HTTPDisburser{
		url:    strings.TrimRight(cfg.Payout.DisbursementURL, "/"),
		apiKey: cfg.Payout.DisbursementAPIKey,
		client: &http.Client{Timeout: cfg.Payout.DisbursementTimeout},
	}
}

func (d *HTTPDisburser) Disburse(ctx context.Context, reference string, p ProcessPayload) (*DisburseResult, error) {
	body, err := json.Marshal(transferRequest{
		Reference:       reference,
		Amount:          p.Amount.StringFixed(2),
		Currency:        p.Currency,
		AccountNumber:   p.BankDetails.AccountNumber,
		AccountName:     p.BankDetails.AccountName,
		BankCode:        p.BankDetails.BankCode,
		PaymentProvider: p.BankDetails.PaymentProvider,
		Narration:       "Payout " + reference,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode transfer: %v", ErrPermanent, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url+"/transfers", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", reference)
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send transfer: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read transfer response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: gateway returned %d: %s", ErrPermanent, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var result DisburseResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode transfer response: %w", err)
	}
	switch result.Status {
	case DisburseSucceeded, DisbursePending:
	case "failed":
		return nil, fmt.Errorf("%w: %s", ErrPermanent, result.Message)
	default:
		result.Status = DisbursePending
	}
	return &result, nil
}

type manualDisburser struct{}

func (manualDisburser) Disburse(_ context.Context, reference string, _ ProcessPayload) (*DisburseResult, error) {
	return &DisburseResult{Status: DisbursePending, Reference: reference}, nil
}
