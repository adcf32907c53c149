// node.go - Wiring of store, components and API for a running daemon.

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/dgraph-io/badger/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"privatepay/internal/api"
	"privatepay/internal/config"
	"privatepay/internal/custody"
	"privatepay/internal/events"
	"privatepay/internal/metrics"
	"privatepay/internal/orchestrator"
	"privatepay/internal/proofcache"
	"privatepay/internal/storage"
)

// node holds the wired components of a running daemon.
type node struct {
	db       *badger.DB
	registry *prometheus.Registry
	ledger   *custody.Ledger
	cache    *proofcache.Cache
	orch     *orchestrator.Orchestrator
	api      *api.Server
	closers  []io.Closer
}

// buildNode opens the store and wires every component described by cfg.
func buildNode(ctx context.Context, log zerolog.Logger, cfg *config.Config) (n *node, err error) {
	admin, err := cfg.AdminAddress()
	if err != nil {
		return nil, fmt.Errorf("admin: %w", err)
	}
	self, err := cfg.OrchestratorAddress()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	n = &node{registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = n.Close()
		}
	}()
	n.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if cfg.DataDir == "" {
		log.Warn().Msg("no data directory configured, state is kept in memory")
		n.db, err = storage.OpenInMemory()
	} else {
		n.db, err = storage.Open(cfg.DataDir)
	}
	if err != nil {
		return nil, err
	}
	n.closers = append(n.closers, n.db)

	emitter := events.Multi{events.NewLogEmitter(log)}
	if cfg.AuditLogPath != "" {
		sink, err := events.NewJSONLSink(cfg.AuditLogPath, log)
		if err != nil {
			return nil, err
		}
		n.closers = append(n.closers, sink)
		emitter = append(emitter, sink)
	}

	predicate, err := newPredicate(cfg)
	if err != nil {
		return nil, err
	}
	auth, err := api.NewAuthenticator(cfg.AdminToken, cfg.AccountKeys)
	if err != nil {
		return nil, fmt.Errorf("api credentials: %w", err)
	}

	n.ledger, err = custody.New(log, n.db, admin,
		custody.WithEmitter(emitter),
		custody.WithMetrics(metrics.NewLedgerCollector(n.registry)),
		custody.WithGateWait(cfg.GateWait()),
	)
	if err != nil {
		return nil, err
	}
	if err := n.ledger.SetAuthorizedCaller(ctx, admin, self, true); err != nil {
		return nil, fmt.Errorf("could not authorize orchestrator on the ledger: %w", err)
	}

	n.cache, err = proofcache.New(log, n.db, predicate,
		proofcache.WithEmitter(emitter),
		proofcache.WithMetrics(metrics.NewProofCollector(n.registry)),
		proofcache.WithReadCacheSize(cfg.VerdictCacheSize),
		proofcache.WithGateWait(cfg.GateWait()),
	)
	if err != nil {
		return nil, err
	}

	n.orch, err = orchestrator.New(log, n.db, n.ledger, n.cache, self, admin,
		orchestrator.WithEmitter(emitter),
		orchestrator.WithMetrics(metrics.NewOrchestratorCollector(n.registry)),
		orchestrator.WithMinPrivacyScore(cfg.MinPrivacyScore),
		orchestrator.WithGateWait(cfg.GateWait()),
	)
	if err != nil {
		return nil, err
	}

	n.api = api.New(log, api.Backend{Orchestrator: n.orch, Ledger: n.ledger, Proofs: n.cache}, version,
		api.WithAuthenticator(auth),
		api.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		api.WithAllowedOrigins(cfg.AllowedOrigins),
		api.WithMetrics(n.registry),
	)

	log.Info().
		Str("admin", admin.Hex()).
		Str("orchestrator", self.Hex()).
		Str("verifier", cfg.Verifier).
		Int("account_keys", len(cfg.AccountKeys)).
		Msg("components wired")
	return n, nil
}

func newPredicate(cfg *config.Config) (proofcache.Predicate, error) {
	switch cfg.Verifier {
	case config.VerifierGroth16:
		verifier, err := proofcache.LoadGroth16Verifier(cfg.VerifyingKeyPath)
		if err != nil {
			return nil, err
		}
		return verifier, nil
	case config.VerifierChecksum:
		return proofcache.ChecksumOracle{Tolerance: cfg.ChecksumTolerance}, nil
	default:
		return nil, fmt.Errorf("unknown verifier %q", cfg.Verifier)
	}
}

// Close releases the audit sink and the store, in reverse opening order.
func (n *node) Close() error {
	var result *multierror.Error
	for i := len(n.closers) - 1; i >= 0; i-- {
		if err := n.closers[i].Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	n.closers = nil
	return result.ErrorOrNil()
}
