// errors.go - Custody ledger error kinds and their metric labels.

package custody

import (
	"errors"

	"privatepay/internal/guard"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidAddress      = errors.New("invalid address")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnauthorized        = errors.New("unauthorized caller")
	ErrAlreadyExecuted     = errors.New("transfer already executed")
	ErrTransferFailed      = errors.New("asset transfer failed")
	ErrGateNotHeld         = errors.New("ledger gate not held by context")
)

// reason maps an error to the label reported in failure metrics.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidAddress):
		return "invalid_address"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrAlreadyExecuted):
		return "already_executed"
	case errors.Is(err, ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, guard.ErrReentrantCall):
		return "reentrant_call"
	case errors.Is(err, guard.ErrBusy):
		return "busy"
	default:
		return "internal"
	}
}
