package ledger

import (
	"errors"

	"marketplace-ledger/pkg/errutil"
)

const (
	ReasonInsufficientEarnings = "INSUFFICIENT_EARNINGS"
	ReasonInvalidTransition    = "INVALID_TRANSITION"
)

var (
	ErrInsufficientEarnings = errors.New("available earnings cannot exactly cover the amount")
	ErrInvalidTransition    = errors.New("invalid status transition")
)

func insufficientEarnings() error {
	return errutil.Conflict("available earnings cannot exactly cover the payout amount",
		ErrInsufficientEarnings, errutil.WithReason(ReasonInsufficientEarnings))
}

func InvalidTransition(msg string) error {
	return errutil.Conflict(msg, ErrInvalidTransition, errutil.WithReason(ReasonInvalidTransition))
}
