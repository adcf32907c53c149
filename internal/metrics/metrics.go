// metrics.go - Metric interfaces and label names of the payment components.

// Package metrics exposes the prometheus collectors of the payment components.
package metrics

import "time"

const (
	namespace = "privatepay"

	subsystemLedger       = "ledger"
	subsystemProofs       = "proofs"
	subsystemOrchestrator = "orchestrator"

	LabelOperation = "operation"
	LabelReason    = "reason"
	LabelVerdict   = "verdict"
	LabelDirection = "direction"
)

// LedgerMetrics is reported by the custody ledger after each committed call,
// and on failure with the error kind.
type LedgerMetrics interface {
	Deposit(amount uint64)
	Movement(operation string, count int, volume uint64)
	Failure(operation, reason string)
}

// ProofMetrics is reported by the proof acceptance cache.
type ProofMetrics interface {
	Verification(accepted bool)
	VerificationFailure(reason string)
	ReadCacheHit()
}

// OrchestratorMetrics is reported by the request orchestrator.
type OrchestratorMetrics interface {
	Settlement(decoys int, duration time.Duration)
	Rejection(reason string)
	VaultMovement(direction string, amount uint64)
}
