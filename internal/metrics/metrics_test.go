package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	ledger := NewLedgerCollector(reg)
	proofs := NewProofCollector(reg)
	orch := NewOrchestratorCollector(reg)

	ledger.Deposit(10)
	ledger.Movement("transfer", 1, 4)
	ledger.Failure("transfer", "insufficient_balance")
	proofs.Verification(true)
	proofs.Verification(false)
	proofs.Verification(true)
	proofs.VerificationFailure("invalid_proof")
	orch.Settlement(4, 3*time.Millisecond)
	orch.Rejection("invalid_decoy_count")

	assert.Equal(t, float64(10), testutil.ToFloat64(ledger.volume.WithLabelValues("deposit")))
	assert.Equal(t, float64(4), testutil.ToFloat64(ledger.volume.WithLabelValues("transfer")))
	assert.Equal(t, float64(2), testutil.ToFloat64(proofs.verifications.WithLabelValues("accepted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(proofs.failures.WithLabelValues("invalid_proof")))
	assert.Equal(t, float64(4), testutil.ToFloat64(orch.decoys))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestCollectorsRegisterPerRegistry(t *testing.T) {
	assert.NotPanics(t, func() {
		NewLedgerCollector(prometheus.NewRegistry())
		NewLedgerCollector(prometheus.NewRegistry())
	})
}

func TestNoopCollectorServesEveryComponent(t *testing.T) {
	noop := NewNoopCollector()
	var (
		_ LedgerMetrics       = noop
		_ ProofMetrics        = noop
		_ OrchestratorMetrics = noop
	)
	assert.NotPanics(t, func() {
		noop.Failure("transfer", "unauthorized")
		noop.VerificationFailure("invalid_proof")
	})
}
