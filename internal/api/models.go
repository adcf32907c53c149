// models.go - JSON request and response bodies of the HTTP API.

package api

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"privatepay/internal/orchestrator"
	"privatepay/internal/types"
)

// hexBytes is a byte string carried as 0x-prefixed hex in JSON.
type hexBytes []byte

func (b hexBytes) MarshalText() ([]byte, error) {
	return []byte("0x" + hex.EncodeToString(b)), nil
}

func (b *hexBytes) UnmarshalText(text []byte) error {
	s := strings.TrimPrefix(strings.TrimPrefix(string(text), "0x"), "0X")
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hex bytes: %w", err)
	}
	*b = decoded
	return nil
}

// fundsRequest names the account it acts for. For withdrawals the account
// may be omitted and defaults to the authenticated one.
type fundsRequest struct {
	Account types.Address `json:"account"`
	Amount  uint64        `json:"amount"`
}

// paymentRequest is paid by the authenticated account; caller, when present,
// must name it.
type paymentRequest struct {
	Caller     types.Address        `json:"caller"`
	Recipient  types.Address        `json:"recipient"`
	Amount     uint64               `json:"amount"`
	Commitment types.Commitment     `json:"commitment"`
	Proof      hexBytes             `json:"proof"`
	Memo       string               `json:"memo,omitempty"`
	DecoyCount *int                 `json:"decoy_count,omitempty"`
	Decoys     []orchestrator.Decoy `json:"decoys"`
}

func (p paymentRequest) request() orchestrator.Request {
	count := len(p.Decoys)
	if p.DecoyCount != nil {
		count = *p.DecoyCount
	}
	return orchestrator.Request{
		Recipient:  p.Recipient,
		Amount:     p.Amount,
		Commitment: p.Commitment,
		DecoyCount: count,
		Proof:      p.Proof,
		Memo:       p.Memo,
	}
}

type scoreOverrideRequest struct {
	Account types.Address `json:"account"`
	Score   uint64        `json:"score"`
}

type forceAcceptRequest struct {
	Proof  hexBytes `json:"proof"`
	Inputs []string `json:"inputs"` // decimal or 0x-prefixed field elements
}

type receiptResponse struct {
	ReceiptID    string            `json:"receipt_id"`
	Execution    types.ExecutionID `json:"execution"`
	Commitment   types.Commitment  `json:"commitment"`
	Noise        []types.Hash      `json:"noise"`
	PrivacyScore uint64            `json:"privacy_score"`
	Rating       string            `json:"rating"`
	SettledAt    time.Time         `json:"settled_at"`
}

func newReceiptResponse(id string, r *orchestrator.Receipt) receiptResponse {
	return receiptResponse{
		ReceiptID:    id,
		Execution:    r.Execution,
		Commitment:   r.Commitment,
		Noise:        r.Noise,
		PrivacyScore: r.PrivacyScore,
		Rating:       r.Rating,
		SettledAt:    r.SettledAt,
	}
}

type withdrawResponse struct {
	Execution types.ExecutionID `json:"execution"`
}

type balanceResponse struct {
	Account types.Address `json:"account"`
	Balance uint64        `json:"balance"`
}

type scoreResponse struct {
	Account      types.Address `json:"account"`
	PrivacyScore uint64        `json:"privacy_score"`
	Rating       string        `json:"rating"`
}

type metricsResponse struct {
	Account            types.Address `json:"account"`
	TotalPayments      uint64        `json:"total_payments"`
	TotalDecoys        uint64        `json:"total_decoys"`
	PatternComplexity  uint64        `json:"pattern_complexity"`
	PrivacyScore       uint64        `json:"privacy_score"`
	StoredScore        uint64        `json:"stored_score"`
	Rating             string        `json:"rating"`
	TrackingResistance uint64        `json:"tracking_resistance"`
	LastPayment        *time.Time    `json:"last_payment,omitempty"`
	Recommendations    []string      `json:"recommendations"`
}

func newMetricsResponse(account types.Address, m *orchestrator.PrivacyMetrics) metricsResponse {
	out := metricsResponse{
		Account:            account,
		TotalPayments:      m.TotalPayments,
		TotalDecoys:        m.TotalDecoys,
		PatternComplexity:  m.PatternComplexity,
		PrivacyScore:       m.PrivacyScore,
		StoredScore:        m.StoredScore,
		Rating:             m.Rating,
		TrackingResistance: m.TrackingResistance,
		Recommendations:    m.Recommendations,
	}
	if !m.LastPayment.IsZero() {
		last := m.LastPayment
		out.LastPayment = &last
	}
	return out
}

type globalStatsResponse struct {
	SettledPayments     uint64 `json:"settled_payments"`
	DecoysEmitted       uint64 `json:"decoys_emitted"`
	Profiles            uint64 `json:"profiles"`
	AveragePrivacyScore uint64 `json:"average_privacy_score"`
	LedgerExecutions    uint64 `json:"ledger_executions"`
	LedgerVolume        uint64 `json:"ledger_volume"`
	ProofsAccepted      uint64 `json:"proofs_accepted"`
	ProofsRejected      uint64 `json:"proofs_rejected"`
	ProofAcceptanceRate uint64 `json:"proof_acceptance_rate"`
}

type statusResponse struct {
	*HealthCheckResponse
	Paused bool `json:"paused"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
