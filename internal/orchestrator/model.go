// model.go - Requests, receipts, profiles and persisted orchestrator records.

package orchestrator

import (
	"time"

	"privatepay/internal/types"
)

const (
	MinDecoys = 3
	MaxDecoys = 8

	// MinPrivacyScore is the lowest score allowed to settle a payment.
	MinPrivacyScore = 50
	// DefaultPrivacyScore is the score of an account without history.
	DefaultPrivacyScore = 50
	MaxPrivacyScore     = 100
)

// Request is a private payment request.
type Request struct {
	Recipient  types.Address
	Amount     uint64
	Commitment types.Commitment
	DecoyCount int
	Proof      []byte
	Memo       string
}

// Decoy describes one decoy transfer emitted as cover traffic.
type Decoy struct {
	Recipient    types.Address `json:"recipient"`
	Amount       uint64        `json:"amount"`
	TimingOffset uint64        `json:"timing_offset"` // seconds
}

// Profile holds the privacy statistics of one account.
type Profile struct {
	TotalTransactions uint64
	SuccessfulDecoys  uint64
	PatternComplexity uint64
	PrivacyScore      uint64
	LastTransaction   int64 // unix nanoseconds, 0 before the first payment
}

// LastTransactionTime returns the time of the last settled payment.
func (p Profile) LastTransactionTime() time.Time {
	if p.LastTransaction == 0 {
		return time.Time{}
	}
	return time.Unix(0, p.LastTransaction).UTC()
}

// CommitmentRecord marks a consumed commitment.
type CommitmentRecord struct {
	Caller    types.Address
	Execution types.ExecutionID
	Timestamp int64
}

// NoiseRecord is the cover-traffic entry of one decoy.
type NoiseRecord struct {
	Fingerprint  types.Hash
	Commitment   types.Commitment
	Index        uint64
	TimingOffset uint64
	Timestamp    int64
}

// GlobalStats aggregates every settled payment.
type GlobalStats struct {
	SettledPayments     uint64
	DecoysEmitted       uint64
	Profiles            uint64
	AveragePrivacyScore uint64
}

type settlementCounters struct {
	SettledPayments uint64
	DecoysEmitted   uint64
}

// profileSummary keeps the running sum behind the average privacy score.
type profileSummary struct {
	Profiles uint64
	ScoreSum uint64
}

// Receipt describes a settled payment.
type Receipt struct {
	Execution    types.ExecutionID
	Commitment   types.Commitment
	Noise        []types.Hash
	PrivacyScore uint64
	Rating       string
	SettledAt    time.Time
}

// PrivacyMetrics is the privacy report of one account.
type PrivacyMetrics struct {
	TotalPayments      uint64
	TotalDecoys        uint64
	PatternComplexity  uint64
	PrivacyScore       uint64
	StoredScore        uint64
	Rating             string
	TrackingResistance uint64
	LastPayment        time.Time
	Recommendations    []string
}
