package payout

import (
	"context"
	"errors"
	"fmt"

	"marketplace-ledger/pkg/logger"
	"marketplace-ledger/pkg/taskname"
	"marketplace-ledger/services/ledger"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type Worker struct {
	svc       *Service
	disburser Disburser
}

func NewWorker(svc *Service, disburser Disburser) *Worker {
	return &Worker{svc: svc, disburser: disburser}
}

func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(taskname.PayoutProcess, w.HandleProcessPayout)
}

// HandleProcessPayout disburses a PROCESSING payout. Gateway rejections fail
// the payout at once; other errors are retried and fail it on the last try.
func (w *Worker) HandleProcessPayout(ctx context.Context, t *asynq.Task) error {
	p, err := DecodeProcessPayload(t)
	if err != nil || p.PayoutID == "" {
		zap.L().Error("invalid payout payload", zap.Error(err))
		return fmt.Errorf("decode payout payload: %v: %w", err, asynq.SkipRetry)
	}

	log := logger.FromContext(ctx).With(zap.String("payout_id", p.PayoutID), zap.String("provider_id", p.ProviderID))

	payout, err := w.svc.GetPayout(ctx, p.ProviderID, p.PayoutID)
	if err != nil {
		return err
	}
	if payout.Status != ledger.PayoutProcessing {
		// cancelled by an admin or settled by the webhook
		log.Info("payout no longer processing, skipping", zap.String("status", string(payout.Status)))
		return nil
	}

	result, err := w.disburser.Disburse(ctx, payout.Reference, p)
	if err != nil {
		if errors.Is(err, ErrPermanent) {
			disbursementsTotal.WithLabelValues("rejected").Inc()
			log.Warn("disbursement rejected", zap.Error(err))
			if _, ferr := w.svc.FailPayout(ctx, p.PayoutID, err.Error()); ferr != nil {
				return ferr
			}
			return nil
		}

		disbursementsTotal.WithLabelValues("error").Inc()
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, ok := asynq.GetMaxRetry(ctx)
		if ok && retried >= maxRetry {
			log.Error("disbursement retries exhausted", zap.Int("retried", retried), zap.Error(err))
			if _, ferr := w.svc.FailPayout(ctx, p.PayoutID, "disbursement retries exhausted: "+err.Error()); ferr != nil {
				return ferr
			}
			return nil
		}
		return err
	}

	if result.Status == DisbursePending {
		disbursementsTotal.WithLabelValues("pending").Inc()
		log.Info("disbursement pending", zap.String("provider_reference", result.Reference))
		return nil
	}

	disbursementsTotal.WithLabelValues("succeeded").Inc()
	_, err = w.svc.CompletePayout(ctx, p.PayoutID, result.Reference)
	return err
}
