// events.go - Event records, kinds and emitter fan-out.

// Package events carries the structured audit records emitted by every mutating
// entry point of the ledger, the proof cache and the orchestrator.
//
// Components never emit directly from inside a transaction: they register the
// emission as a post-commit callback, so a rolled-back call leaves no record.
package events

import (
	"time"

	"privatepay/internal/types"
)

// Kind names an event type.
type Kind string

const (
	Deposit              Kind = "deposit"
	Transfer             Kind = "transfer"
	Withdraw             Kind = "withdraw"
	BatchTransfer        Kind = "batch_transfer"
	AuthorizationChanged Kind = "authorization_changed"
	ProofVerified        Kind = "proof_verified"
	DecoyNoise           Kind = "decoy_noise"
	PaymentSettled       Kind = "private_payment_settled"
	ProfileUpdated       Kind = "privacy_profile_updated"
	VaultDeposit         Kind = "vault_deposit"
	VaultWithdraw        Kind = "vault_withdraw"
	Paused               Kind = "paused"
	Unpaused             Kind = "unpaused"
)

// Event is one audit record.
type Event struct {
	Kind   Kind                   `json:"kind"`
	Source string                 `json:"source"`
	Caller types.Address          `json:"caller"`
	Time   time.Time              `json:"time"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}

// Emitter publishes events. Implementations must be safe for concurrent use.
type Emitter interface {
	Emit(Event)
}

// Noop discards every event.
type Noop struct{}

func (Noop) Emit(Event) {}

// Multi fans an event out to several emitters in order.
type Multi []Emitter

func (m Multi) Emit(e Event) {
	for _, emitter := range m {
		emitter.Emit(e)
	}
}
