// cache.go - Write-once proof verdict cache over badger.

// Package proofcache remembers the verdict of every proof it has evaluated.
//
// A proof is identified by the fingerprint of its bytes and public inputs.
// The first submission of a fingerprint is evaluated by the configured
// Predicate and its verdict stored forever; any later submission of the same
// fingerprint fails with ErrAlreadyVerified without evaluating again.
package proofcache

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/dgraph-io/badger/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"privatepay/internal/events"
	"privatepay/internal/guard"
	"privatepay/internal/metrics"
	"privatepay/internal/storage"
	"privatepay/internal/types"
)

const (
	source = "proofcache"

	DefaultReadCacheSize = 4096
)

// Verdict is the stored outcome of one fingerprint.
type Verdict struct {
	Accepted  bool
	Forced    bool
	Timestamp int64
}

// Stats aggregates all verdicts.
type Stats struct {
	Accepted uint64
	Rejected uint64
	// Rate is Accepted*100/(Accepted+Rejected), 0 before the first verdict.
	Rate uint64
}

type counters struct {
	Accepted uint64
	Rejected uint64
}

// Cache is the proof acceptance cache.
type Cache struct {
	db        *badger.DB
	gate      *guard.Gate
	predicate Predicate
	verdicts  *lru.Cache[types.Fingerprint, bool]
	now       func() time.Time
	log       zerolog.Logger
	emitter   events.Emitter
	metrics   metrics.ProofMetrics
}

type Option func(*Cache)

func WithEmitter(e events.Emitter) Option {
	return func(c *Cache) { c.emitter = e }
}

func WithMetrics(m metrics.ProofMetrics) Option {
	return func(c *Cache) { c.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithGateWait(d time.Duration) Option {
	return func(c *Cache) { c.gate = guard.New(guard.WithMaxWait(d)) }
}

// WithReadCacheSize bounds the number of verdicts kept in memory. Non-positive
// sizes keep the default.
func WithReadCacheSize(size int) Option {
	return func(c *Cache) {
		verdicts, err := lru.New[types.Fingerprint, bool](size)
		if err == nil {
			c.verdicts = verdicts
		}
	}
}

// New returns a cache evaluating fresh proofs with predicate.
func New(log zerolog.Logger, db *badger.DB, predicate Predicate, opts ...Option) (*Cache, error) {
	if predicate == nil {
		return nil, fmt.Errorf("missing predicate")
	}
	verdicts, err := lru.New[types.Fingerprint, bool](DefaultReadCacheSize)
	if err != nil {
		return nil, fmt.Errorf("could not create verdict cache: %w", err)
	}
	c := &Cache{
		db:        db,
		gate:      guard.New(),
		predicate: predicate,
		verdicts:  verdicts,
		now:       time.Now,
		log:       log.With().Str("component", source).Logger(),
		emitter:   events.Noop{},
		metrics:   metrics.NewNoopCollector(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Lock holds the cache gate for a unit of work spanning several components.
// The returned context must be passed to the *Tx methods.
func (c *Cache) Lock(ctx context.Context) (context.Context, func(), error) {
	return c.gate.Enter(ctx)
}

// Fingerprint identifies a proof together with its public inputs.
func Fingerprint(proof []byte, inputs []*big.Int) types.Fingerprint {
	h := types.NewHasher().Bytes(proof).Uint64(uint64(len(inputs)))
	for _, input := range inputs {
		h.Hash(inputHash(input))
	}
	return h.Sum()
}

func inputHash(input *big.Int) types.Hash {
	var h types.Hash
	input.FillBytes(h[:])
	return h
}

func validate(proof []byte, inputs []*big.Int) error {
	if len(proof) == 0 {
		return fmt.Errorf("%w: empty proof", ErrInvalidProof)
	}
	if len(inputs) == 0 {
		return fmt.Errorf("%w: no public inputs", ErrInvalidProof)
	}
	for i, input := range inputs {
		if input == nil || input.Sign() < 0 || input.BitLen() > 8*types.HashLength {
			return fmt.Errorf("%w: public input %d out of range", ErrInvalidProof, i)
		}
	}
	return nil
}

// Verify evaluates a proof that was never submitted before and returns its verdict.
func (c *Cache) Verify(ctx context.Context, proof []byte, inputs []*big.Int) (bool, error) {
	ctx, release, err := c.gate.Enter(ctx)
	if err != nil {
		return false, c.fail(err)
	}
	defer release()

	var accepted bool
	err = storage.Update(c.db, func(tx *storage.Tx) error {
		accepted, err = c.verify(ctx, tx, types.ZeroAddress, proof, inputs)
		return err
	})
	if err != nil {
		return false, c.fail(err)
	}
	return accepted, nil
}

// VerifyTx is Verify staged in a caller-owned transaction on behalf of caller.
func (c *Cache) VerifyTx(ctx context.Context, tx *storage.Tx, caller types.Address, proof []byte, inputs []*big.Int) (bool, error) {
	if !c.gate.Held(ctx) {
		return false, ErrGateNotHeld
	}
	accepted, err := c.verify(ctx, tx, caller, proof, inputs)
	if err != nil {
		return false, c.fail(err)
	}
	return accepted, nil
}

// VerifyBatch verifies proofs[i] against inputs[i] in order. The batch is one
// unit: any failing item aborts it and no verdict of the batch is kept.
func (c *Cache) VerifyBatch(ctx context.Context, proofs [][]byte, inputs [][]*big.Int) ([]bool, error) {
	ctx, release, err := c.gate.Enter(ctx)
	if err != nil {
		return nil, c.fail(err)
	}
	defer release()

	if len(proofs) != len(inputs) {
		return nil, c.fail(fmt.Errorf("%w: %d proofs, %d input sets", ErrArrayLengthMismatch, len(proofs), len(inputs)))
	}

	var verdicts []bool
	err = storage.Update(c.db, func(tx *storage.Tx) error {
		verdicts = make([]bool, 0, len(proofs))
		for i := range proofs {
			accepted, err := c.verify(ctx, tx, types.ZeroAddress, proofs[i], inputs[i])
			if err != nil {
				return fmt.Errorf("proof %d: %w", i, err)
			}
			verdicts = append(verdicts, accepted)
		}
		return nil
	})
	if err != nil {
		return nil, c.fail(err)
	}
	return verdicts, nil
}

// ForceAcceptTx stores an accepted verdict for a proof without evaluating it.
// Authorization is up to the caller.
func (c *Cache) ForceAcceptTx(ctx context.Context, tx *storage.Tx, admin types.Address, proof []byte, inputs []*big.Int) error {
	if !c.gate.Held(ctx) {
		return ErrGateNotHeld
	}
	if err := c.record(tx, admin, proof, inputs, func() bool { return true }, true); err != nil {
		return c.fail(err)
	}
	return nil
}

// IsVerified reports whether the proof was evaluated and accepted.
func (c *Cache) IsVerified(ctx context.Context, proof []byte, inputs []*big.Int) (bool, error) {
	_, release, err := c.gate.Enter(ctx)
	if err != nil {
		return false, err
	}
	defer release()

	fp := Fingerprint(proof, inputs)
	if accepted, ok := c.verdicts.Get(fp); ok {
		c.metrics.ReadCacheHit()
		return accepted, nil
	}

	verdict, err := c.lookup(fp)
	if err != nil || verdict == nil {
		return false, err
	}
	c.verdicts.Add(fp, verdict.Accepted)
	return verdict.Accepted, nil
}

// Verdict returns the stored verdict of a fingerprint, or storage.ErrNotFound.
func (c *Cache) Verdict(ctx context.Context, fp types.Fingerprint) (*Verdict, error) {
	_, release, err := c.gate.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	verdict, err := c.lookup(fp)
	if err != nil {
		return nil, err
	}
	if verdict == nil {
		return nil, storage.ErrNotFound
	}
	return verdict, nil
}

// Stats returns the verdict counters.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	_, release, err := c.gate.Enter(ctx)
	if err != nil {
		return Stats{}, err
	}
	defer release()

	var cnt counters
	if err := c.db.View(storage.RetrieveOrDefault(statsKey(), &cnt)); err != nil {
		return Stats{}, err
	}
	stats := Stats{Accepted: cnt.Accepted, Rejected: cnt.Rejected}
	if total := cnt.Accepted + cnt.Rejected; total > 0 {
		stats.Rate = cnt.Accepted * 100 / total
	}
	return stats, nil
}

func verdictKey(fp types.Fingerprint) []byte {
	return storage.MakeKey(storage.CodeVerdict, fp)
}

func statsKey() []byte {
	return storage.MakeKey(storage.CodeProofStats)
}

func (c *Cache) lookup(fp types.Fingerprint) (*Verdict, error) {
	var verdict Verdict
	err := c.db.View(storage.Retrieve(verdictKey(fp), &verdict))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &verdict, nil
}

func (c *Cache) verify(_ context.Context, tx *storage.Tx, caller types.Address, proof []byte, inputs []*big.Int) (bool, error) {
	var accepted bool
	err := c.record(tx, caller, proof, inputs, func() bool {
		accepted = c.predicate.Accept(proof, inputs)
		return accepted
	}, false)
	return accepted, err
}

// record evaluates and stores the verdict of a fingerprint seen for the first time.
func (c *Cache) record(tx *storage.Tx, caller types.Address, proof []byte, inputs []*big.Int, evaluate func() bool, forced bool) error {
	if err := validate(proof, inputs); err != nil {
		return err
	}
	fp := Fingerprint(proof, inputs)
	if _, ok := c.verdicts.Peek(fp); ok {
		return fmt.Errorf("%w: %s", ErrAlreadyVerified, fp)
	}
	var seen bool
	if err := tx.Do(storage.Check(verdictKey(fp), &seen)); err != nil {
		return err
	}
	if seen {
		return fmt.Errorf("%w: %s", ErrAlreadyVerified, fp)
	}

	now := c.now()
	verdict := Verdict{Accepted: evaluate(), Forced: forced, Timestamp: now.UnixNano()}
	if err := tx.Do(storage.Insert(verdictKey(fp), verdict)); err != nil {
		return fmt.Errorf("could not store verdict: %w", err)
	}

	var cnt counters
	if err := tx.Do(storage.RetrieveOrDefault(statsKey(), &cnt)); err != nil {
		return err
	}
	if verdict.Accepted {
		cnt.Accepted++
	} else {
		cnt.Rejected++
	}
	if err := tx.Do(storage.Upsert(statsKey(), cnt)); err != nil {
		return fmt.Errorf("could not update proof stats: %w", err)
	}

	tx.OnSucceed(func() {
		c.verdicts.Add(fp, verdict.Accepted)
		c.metrics.Verification(verdict.Accepted)
		c.emitter.Emit(events.Event{
			Kind:   events.ProofVerified,
			Source: source,
			Caller: caller,
			Time:   now,
			Fields: map[string]interface{}{
				"fingerprint": fp.Hex(),
				"accepted":    verdict.Accepted,
				"forced":      forced,
			},
		})
	})
	return nil
}

func (c *Cache) fail(err error) error {
	c.metrics.VerificationFailure(reason(err))
	c.log.Debug().Err(err).Msg("verification call rejected")
	return err
}
