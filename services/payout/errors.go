package payout

import (
	"errors"

	"marketplace-ledger/pkg/errutil"
)

const (
	ReasonInsufficientBalance = "INSUFFICIENT_BALANCE"
	ReasonQueueUnavailable    = "QUEUE_UNAVAILABLE"
	ReasonAmountTooLarge      = "AMOUNT_TOO_LARGE"
)

var (
	ErrInsufficientBalance = errors.New("available balance is lower than the requested amount")
	ErrQueueUnavailable    = errors.New("payout job could not be enqueued")
)

func insufficientBalance() error {
	return errutil.UnprocessableEntity("insufficient available balance",
		ErrInsufficientBalance, errutil.WithReason(ReasonInsufficientBalance))
}

func queueUnavailable(err error) error {
	return errutil.ServiceUnavailable("payout could not be queued, please retry",
		errors.Join(ErrQueueUnavailable, err), errutil.WithReason(ReasonQueueUnavailable))
}
