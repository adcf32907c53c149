// errors.go - Orchestrator error kinds and their metric labels.

package orchestrator

import (
	"errors"

	"privatepay/internal/custody"
	"privatepay/internal/guard"
	"privatepay/internal/proofcache"
)

var (
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidAddress        = errors.New("invalid address")
	ErrInvalidRecipient      = errors.New("invalid recipient")
	ErrInvalidDecoyCount     = errors.New("invalid decoy count")
	ErrCommitmentAlreadyUsed = errors.New("commitment already used")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInvalidZKProof        = errors.New("invalid zk proof")
	ErrPrivacyScoreTooLow    = errors.New("privacy score too low")
	ErrInvalidScore          = errors.New("invalid privacy score")
	ErrUnauthorized          = errors.New("unauthorized caller")
	ErrNoiseCollision        = errors.New("noise record already exists")
)

// reason maps an error to the label reported in rejection metrics.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, custody.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidAddress), errors.Is(err, custody.ErrInvalidAddress):
		return "invalid_address"
	case errors.Is(err, ErrInvalidRecipient):
		return "invalid_recipient"
	case errors.Is(err, ErrInvalidDecoyCount):
		return "invalid_decoy_count"
	case errors.Is(err, ErrNoiseCollision):
		return "noise_collision"
	case errors.Is(err, ErrCommitmentAlreadyUsed):
		return "commitment_already_used"
	case errors.Is(err, ErrInsufficientBalance), errors.Is(err, custody.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrInvalidZKProof):
		return "invalid_zk_proof"
	case errors.Is(err, ErrPrivacyScoreTooLow):
		return "privacy_score_too_low"
	case errors.Is(err, ErrInvalidScore):
		return "invalid_score"
	case errors.Is(err, ErrUnauthorized), errors.Is(err, custody.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, custody.ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, custody.ErrAlreadyExecuted):
		return "already_executed"
	case errors.Is(err, proofcache.ErrInvalidProof):
		return "invalid_proof"
	case errors.Is(err, proofcache.ErrAlreadyVerified):
		return "already_verified"
	case errors.Is(err, guard.ErrPaused):
		return "paused"
	case errors.Is(err, guard.ErrReentrantCall):
		return "reentrant_call"
	case errors.Is(err, guard.ErrBusy):
		return "busy"
	default:
		return "internal"
	}
}
