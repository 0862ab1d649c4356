package payout

import (
	"encoding/json"
	"time"

	"marketplace-ledger/pkg/taskname"
	"marketplace-ledger/services/ledger"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
)

type BankDetailsPayload struct {
	AccountNumber   string `json:"account_number"`
	AccountName     string `json:"account_name"`
	BankCode        string `json:"bank_code"`
	BankName        string `json:"bank_name"`
	PaymentProvider string `json:"payment_provider"`
}

// ProcessPayload is the payout:process job body.
type ProcessPayload struct {
	PayoutID    string             `json:"payout_id"`
	ProviderID  string             `json:"provider_id"`
	Amount      decimal.Decimal    `json:"amount"`
	Currency    string             `json:"currency"`
	BankDetails BankDetailsPayload `json:"bank_details"`
}

func NewProcessPayload(p *ledger.Payout) ProcessPayload {
	return ProcessPayload{
		PayoutID:   p.ID,
		ProviderID: p.ProviderID,
		Amount:     p.Amount,
		Currency:   p.Currency,
		BankDetails: BankDetailsPayload{
			AccountNumber:   p.AccountNumber,
			AccountName:     p.AccountName,
			BankCode:        p.BankCode,
			BankName:        p.BankName,
			PaymentProvider: p.PaymentProvider,
		},
	}
}

// NewProcessTask builds the disbursement job. The task id is the payout id so
// a payout is never queued twice.
func NewProcessTask(p ProcessPayload, queue string, maxRetry int) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.PayoutProcess, payload,
		asynq.Queue(queue),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(2*time.Minute),
		asynq.TaskID("payout:"+p.PayoutID),
	), nil
}

func DecodeProcessPayload(t *asynq.Task) (ProcessPayload, error) {
	var p ProcessPayload
	err := json.Unmarshal(t.Payload(), &p)
	return p, err
}
