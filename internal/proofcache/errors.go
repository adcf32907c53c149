// errors.go - Proof cache error kinds and their metric labels.

package proofcache

import (
	"errors"

	"privatepay/internal/guard"
)

var (
	ErrInvalidProof        = errors.New("invalid proof")
	ErrAlreadyVerified     = errors.New("proof already verified")
	ErrArrayLengthMismatch = errors.New("array length mismatch")
	ErrGateNotHeld         = errors.New("proof cache gate not held by context")
)

func reason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidProof):
		return "invalid_proof"
	case errors.Is(err, ErrAlreadyVerified):
		return "already_verified"
	case errors.Is(err, ErrArrayLengthMismatch):
		return "array_length_mismatch"
	case errors.Is(err, guard.ErrReentrantCall):
		return "reentrant_call"
	case errors.Is(err, guard.ErrBusy):
		return "busy"
	default:
		return "internal"
	}
}
