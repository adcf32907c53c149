// orchestrator.go - Request orchestrator construction, pause switch and administrative overrides.

// Package orchestrator validates and settles private payment requests.
//
// A request passes through a fixed pipeline (shape checks, decoy bounds,
// commitment freshness, balance, proof acceptance, privacy score) before the
// commitment is consumed, decoy noise is emitted and the custody ledger pays
// the recipient. The pipeline runs as one transaction spanning the
// orchestrator, the proof cache and the ledger, so a request either settles
// completely or leaves no trace.
package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"

	"privatepay/internal/events"
	"privatepay/internal/guard"
	"privatepay/internal/metrics"
	"privatepay/internal/storage"
	"privatepay/internal/types"
)

const source = "orchestrator"

// Ledger is the part of the custody ledger the orchestrator drives.
type Ledger interface {
	Lock(ctx context.Context) (context.Context, func(), error)
	DepositTx(ctx context.Context, tx *storage.Tx, account types.Address, asset types.AssetID, amount uint64) error
	TransferTx(ctx context.Context, tx *storage.Tx, caller, from, to types.Address, amount uint64, asset types.AssetID) (types.ExecutionID, error)
	WithdrawTx(ctx context.Context, tx *storage.Tx, caller, account types.Address, amount uint64, asset types.AssetID) (types.ExecutionID, error)
}

// ProofCache is the part of the proof acceptance cache the orchestrator drives.
type ProofCache interface {
	Lock(ctx context.Context) (context.Context, func(), error)
	VerifyTx(ctx context.Context, tx *storage.Tx, caller types.Address, proof []byte, inputs []*big.Int) (bool, error)
	ForceAcceptTx(ctx context.Context, tx *storage.Tx, admin types.Address, proof []byte, inputs []*big.Int) error
}

// Orchestrator settles private payments.
type Orchestrator struct {
	db      *badger.DB
	gate    *guard.Gate
	ledger  Ledger
	cache   ProofCache
	self    types.Address
	admin   types.Address
	minimum uint64
	now     func() time.Time
	log     zerolog.Logger
	emitter events.Emitter
	metrics metrics.OrchestratorMetrics
}

type Option func(*Orchestrator)

func WithEmitter(e events.Emitter) Option {
	return func(o *Orchestrator) { o.emitter = e }
}

func WithMetrics(m metrics.OrchestratorMetrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithMinPrivacyScore sets the lowest score allowed to settle. Defaults to
// MinPrivacyScore.
func WithMinPrivacyScore(score uint64) Option {
	return func(o *Orchestrator) { o.minimum = score }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithGateWait bounds how long an entry point waits for a call in progress.
// Defaults to guard.DefaultMaxWait.
func WithGateWait(d time.Duration) Option {
	return func(o *Orchestrator) { o.gate = guard.New(guard.WithMaxWait(d)) }
}

// New returns an orchestrator acting on the ledger as self, which must be an
// authorized caller of the ledger, and administered by admin.
func New(log zerolog.Logger, db *badger.DB, ledger Ledger, cache ProofCache, self, admin types.Address, opts ...Option) (*Orchestrator, error) {
	if self.IsZero() {
		return nil, fmt.Errorf("orchestrator address: %w", ErrInvalidAddress)
	}
	if admin.IsZero() {
		return nil, fmt.Errorf("administrator: %w", ErrInvalidAddress)
	}
	o := &Orchestrator{
		db:      db,
		gate:    guard.New(),
		ledger:  ledger,
		cache:   cache,
		self:    self,
		admin:   admin,
		minimum: MinPrivacyScore,
		now:     time.Now,
		log:     log.With().Str("component", source).Logger(),
		emitter: events.Noop{},
		metrics: metrics.NewNoopCollector(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Address returns the address the orchestrator uses on the ledger.
func (o *Orchestrator) Address() types.Address {
	return o.self
}

// Admin returns the administrator address.
func (o *Orchestrator) Admin() types.Address {
	return o.admin
}

// Paused reports whether mutating calls are currently refused.
func (o *Orchestrator) Paused() bool {
	return o.gate.Paused()
}

// Pause refuses every mutating call until Unpause.
func (o *Orchestrator) Pause(ctx context.Context, admin types.Address) error {
	return o.setPaused(ctx, admin, true)
}

func (o *Orchestrator) Unpause(ctx context.Context, admin types.Address) error {
	return o.setPaused(ctx, admin, false)
}

func (o *Orchestrator) setPaused(ctx context.Context, admin types.Address, paused bool) error {
	_, release, err := o.gate.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if admin != o.admin {
		return ErrUnauthorized
	}
	o.gate.SetPaused(paused)

	kind := events.Unpaused
	if paused {
		kind = events.Paused
	}
	o.log.Warn().Bool("paused", paused).Str("admin", admin.Hex()).Msg("pause state changed")
	o.emitter.Emit(events.Event{Kind: kind, Source: source, Caller: admin, Time: o.now()})
	return nil
}

// SetPrivacyScore overwrites the stored score of account. The settlement gate
// keeps using the score computed from the profile history.
func (o *Orchestrator) SetPrivacyScore(ctx context.Context, admin, account types.Address, score uint64) error {
	_, release, err := o.gate.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if admin != o.admin {
		return ErrUnauthorized
	}
	if score > MaxPrivacyScore {
		return fmt.Errorf("%w: %d", ErrInvalidScore, score)
	}
	if account.IsZero() {
		return ErrInvalidAddress
	}

	return storage.Update(o.db, func(tx *storage.Tx) error {
		profile, existed, err := o.profile(tx, account)
		if err != nil {
			return err
		}
		before := profile.PrivacyScore
		profile.PrivacyScore = score
		if err := o.storeProfile(tx, account, profile, before, existed); err != nil {
			return err
		}

		now := o.now()
		tx.OnSucceed(func() {
			o.log.Warn().Str("account", account.Hex()).Uint64("score", score).Msg("privacy score overridden")
			o.emitter.Emit(events.Event{
				Kind:   events.ProfileUpdated,
				Source: source,
				Caller: admin,
				Time:   now,
				Fields: map[string]interface{}{
					"account": account.Hex(),
					"before":  before,
					"after":   score,
				},
			})
		})
		return nil
	})
}

// ForceAcceptProof records an accepted verdict for a proof without evaluating it.
func (o *Orchestrator) ForceAcceptProof(ctx context.Context, admin types.Address, proof []byte, inputs []*big.Int) error {
	ctx, release, err := o.gate.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if admin != o.admin {
		return ErrUnauthorized
	}
	ctx, releaseCache, err := o.cache.Lock(ctx)
	if err != nil {
		return err
	}
	defer releaseCache()

	err = storage.Update(o.db, func(tx *storage.Tx) error {
		return o.cache.ForceAcceptTx(ctx, tx, admin, proof, inputs)
	})
	if err != nil {
		return err
	}
	o.log.Warn().Str("admin", admin.Hex()).Msg("proof force-accepted")
	return nil
}

func (o *Orchestrator) reject(err error) error {
	o.metrics.Rejection(reason(err))
	o.log.Debug().Err(err).Msg("request rejected")
	return err
}
