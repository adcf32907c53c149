// errors.go - Mapping of component errors to API error codes.

package api

import (
	"errors"
	"net/http"

	"privatepay/internal/custody"
	"privatepay/internal/guard"
	"privatepay/internal/orchestrator"
	"privatepay/internal/proofcache"
)

// Codes that do not come from a component error.
const (
	codeBadRequest      = "BadRequest"
	codeUnauthenticated = "Unauthenticated"
	codeRateLimited     = "RateLimited"
	codeInternal        = "Internal"
)

type errorKind struct {
	err    error
	code   string
	status int
}

// errorKinds is checked in order, first match wins.
var errorKinds = []errorKind{
	{orchestrator.ErrInvalidAmount, "InvalidAmount", http.StatusBadRequest},
	{custody.ErrInvalidAmount, "InvalidAmount", http.StatusBadRequest},
	{orchestrator.ErrInvalidAddress, "InvalidAddress", http.StatusBadRequest},
	{custody.ErrInvalidAddress, "InvalidAddress", http.StatusBadRequest},
	{orchestrator.ErrInvalidRecipient, "InvalidRecipient", http.StatusBadRequest},
	{orchestrator.ErrInvalidDecoyCount, "InvalidDecoyCount", http.StatusBadRequest},
	{orchestrator.ErrInvalidScore, "InvalidScore", http.StatusBadRequest},
	{proofcache.ErrInvalidProof, "InvalidProof", http.StatusBadRequest},
	{proofcache.ErrArrayLengthMismatch, "ArrayLengthMismatch", http.StatusBadRequest},
	{orchestrator.ErrUnauthorized, "Unauthorized", http.StatusForbidden},
	{custody.ErrUnauthorized, "Unauthorized", http.StatusForbidden},
	{orchestrator.ErrCommitmentAlreadyUsed, "CommitmentAlreadyUsed", http.StatusConflict},
	{orchestrator.ErrNoiseCollision, "NoiseCollision", http.StatusConflict},
	{proofcache.ErrAlreadyVerified, "AlreadyVerified", http.StatusConflict},
	{custody.ErrAlreadyExecuted, "AlreadyExecuted", http.StatusConflict},
	{orchestrator.ErrInsufficientBalance, "InsufficientBalance", http.StatusUnprocessableEntity},
	{custody.ErrInsufficientBalance, "InsufficientBalance", http.StatusUnprocessableEntity},
	{orchestrator.ErrInvalidZKProof, "InvalidZKProof", http.StatusUnprocessableEntity},
	{orchestrator.ErrPrivacyScoreTooLow, "PrivacyScoreTooLow", http.StatusUnprocessableEntity},
	{custody.ErrTransferFailed, "TransferFailed", http.StatusBadGateway},
	{guard.ErrPaused, "Paused", http.StatusServiceUnavailable},
	{guard.ErrBusy, "Busy", http.StatusServiceUnavailable},
	{guard.ErrReentrantCall, "ReentrantCall", http.StatusInternalServerError},
}

// classify maps a component error to its machine readable code and HTTP status.
func classify(err error) (string, int) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.code, k.status
		}
	}
	return codeInternal, http.StatusInternalServerError
}

// badRequest marks malformed input rejected before reaching a component.
type badRequest struct {
	msg string
}

func (e badRequest) Error() string {
	return e.msg
}
