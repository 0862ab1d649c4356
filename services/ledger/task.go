package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketplace-ledger/pkg/errutil"
	"marketplace-ledger/pkg/task"
	"marketplace-ledger/pkg/taskname"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RecordEarningPayload is published when a booking payment is confirmed.
type RecordEarningPayload struct {
	ProviderID  string           `json:"provider_id"`
	BookingID   string           `json:"booking_id"`
	GrossAmount decimal.Decimal  `json:"gross_amount"`
	PlatformFee *decimal.Decimal `json:"platform_fee,omitempty"`
	Currency    string           `json:"currency,omitempty"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
}

func NewRecordEarningTask(p RecordEarningPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.EarningRecord, payload,
		asynq.MaxRetry(10),
		asynq.Timeout(30*time.Second),
		asynq.Queue(task.QueueDefault),
		asynq.TaskID(fmt.Sprintf("earning:%s:%s", p.ProviderID, p.BookingID)),
	), nil
}

// NewClearEarningsTask triggers an immediate clearance sweep.
func NewClearEarningsTask() *asynq.Task {
	return asynq.NewTask(taskname.EarningClear, nil,
		asynq.MaxRetry(1),
		asynq.Queue(task.QueueLow),
		asynq.Unique(time.Minute),
	)
}

type Worker struct {
	svc *Service
}

func NewWorker(svc *Service) *Worker {
	return &Worker{svc: svc}
}

func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(taskname.EarningRecord, w.HandleRecordEarning)
	mux.HandleFunc(taskname.EarningClear, w.HandleClearEarnings)
}

func (w *Worker) HandleRecordEarning(ctx context.Context, t *asynq.Task) error {
	var p RecordEarningPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		zap.L().Error("invalid earning payload", zap.Error(err))
		return fmt.Errorf("decode earning payload: %v: %w", err, asynq.SkipRetry)
	}

	_, err := w.svc.RecordEarning(ctx, RecordEarningRequest{
		ProviderID:  p.ProviderID,
		BookingID:   p.BookingID,
		GrossAmount: p.GrossAmount,
		PlatformFee: p.PlatformFee,
		Currency:    p.Currency,
		Metadata:    p.Metadata,
	})
	if errutil.IsStatus(err, errutil.StatusValidationFailed) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

func (w *Worker) HandleClearEarnings(ctx context.Context, _ *asynq.Task) error {
	_, err := w.svc.ClearDueEarnings(ctx)
	return err
}
