// collectors.go - Prometheus collectors of the payment components.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type LedgerCollector struct {
	deposits *prometheus.CounterVec
	volume   *prometheus.CounterVec
	moves    *prometheus.CounterVec
	failures *prometheus.CounterVec
}

// NewLedgerCollector registers the ledger collectors with reg.
func NewLedgerCollector(reg prometheus.Registerer) *LedgerCollector {
	f := promauto.With(reg)
	return &LedgerCollector{
		deposits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemLedger,
			Name:      "deposits_total",
			Help:      "number of committed deposits",
		}, nil),
		volume: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemLedger,
			Name:      "volume_total",
			Help:      "amount moved by committed calls, by operation",
		}, []string{LabelOperation}),
		moves: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemLedger,
			Name:      "executions_total",
			Help:      "number of recorded transfer executions, by operation",
		}, []string{LabelOperation}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemLedger,
			Name:      "failures_total",
			Help:      "number of rejected ledger calls, by operation and error kind",
		}, []string{LabelOperation, LabelReason}),
	}
}

func (c *LedgerCollector) Deposit(amount uint64) {
	c.deposits.WithLabelValues().Inc()
	c.volume.WithLabelValues("deposit").Add(float64(amount))
}

func (c *LedgerCollector) Movement(operation string, count int, volume uint64) {
	c.moves.WithLabelValues(operation).Add(float64(count))
	c.volume.WithLabelValues(operation).Add(float64(volume))
}

func (c *LedgerCollector) Failure(operation, reason string) {
	c.failures.WithLabelValues(operation, reason).Inc()
}

type ProofCollector struct {
	verifications *prometheus.CounterVec
	failures      *prometheus.CounterVec
	hits          prometheus.Counter
}

// NewProofCollector registers the proof cache collectors with reg.
func NewProofCollector(reg prometheus.Registerer) *ProofCollector {
	f := promauto.With(reg)
	return &ProofCollector{
		verifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProofs,
			Name:      "verifications_total",
			Help:      "number of evaluated proofs, by verdict",
		}, []string{LabelVerdict}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProofs,
			Name:      "failures_total",
			Help:      "number of verification calls that errored, by error kind",
		}, []string{LabelReason}),
		hits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProofs,
			Name:      "read_cache_hits_total",
			Help:      "number of verdict lookups served from memory",
		}),
	}
}

func (c *ProofCollector) Verification(accepted bool) {
	verdict := "rejected"
	if accepted {
		verdict = "accepted"
	}
	c.verifications.WithLabelValues(verdict).Inc()
}

func (c *ProofCollector) VerificationFailure(reason string) {
	c.failures.WithLabelValues(reason).Inc()
}

func (c *ProofCollector) ReadCacheHit() {
	c.hits.Inc()
}

type OrchestratorCollector struct {
	settlements prometheus.Counter
	decoys      prometheus.Counter
	latency     prometheus.Histogram
	rejections  *prometheus.CounterVec
	vault       *prometheus.CounterVec
}

// NewOrchestratorCollector registers the orchestrator collectors with reg.
func NewOrchestratorCollector(reg prometheus.Registerer) *OrchestratorCollector {
	f := promauto.With(reg)
	return &OrchestratorCollector{
		settlements: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemOrchestrator,
			Name:      "settlements_total",
			Help:      "number of settled private payments",
		}),
		decoys: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemOrchestrator,
			Name:      "decoys_total",
			Help:      "number of decoy noise records emitted",
		}),
		latency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemOrchestrator,
			Name:      "settlement_duration_seconds",
			Help:      "time spent settling a private payment",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemOrchestrator,
			Name:      "rejections_total",
			Help:      "number of rejected payment requests, by error kind",
		}, []string{LabelReason}),
		vault: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemOrchestrator,
			Name:      "vault_volume_total",
			Help:      "amount deposited to or withdrawn from the vault",
		}, []string{LabelDirection}),
	}
}

func (c *OrchestratorCollector) Settlement(decoys int, duration time.Duration) {
	c.settlements.Inc()
	c.decoys.Add(float64(decoys))
	c.latency.Observe(duration.Seconds())
}

func (c *OrchestratorCollector) Rejection(reason string) {
	c.rejections.WithLabelValues(reason).Inc()
}

func (c *OrchestratorCollector) VaultMovement(direction string, amount uint64) {
	c.vault.WithLabelValues(direction).Add(float64(amount))
}
