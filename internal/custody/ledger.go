// ledger.go - Custody ledger entry points.

// Package custody implements the custody ledger: per-account balances for the
// native asset and for tokens, an allow-list of callers permitted to move funds
// out of custody, and an append-only log of executed transfers.
//
// Every entry point runs as one badger transaction while holding the ledger
// gate. Events and metrics are published only after the transaction commits.
package custody

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"

	"privatepay/internal/events"
	"privatepay/internal/guard"
	"privatepay/internal/metrics"
	"privatepay/internal/storage"
	"privatepay/internal/types"
)

const source = "custody"

// Ledger is the custody ledger.
type Ledger struct {
	db      *badger.DB
	gate    *guard.Gate
	admin   types.Address
	mover   AssetMover
	now     func() time.Time
	log     zerolog.Logger
	emitter events.Emitter
	metrics metrics.LedgerMetrics
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithMover sets the asset mover. Defaults to JournalMover.
func WithMover(m AssetMover) Option {
	return func(l *Ledger) { l.mover = m }
}

// WithClock sets the time source used for execution ids and records.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithEmitter(e events.Emitter) Option {
	return func(l *Ledger) { l.emitter = e }
}

// WithGateWait bounds how long an entry point waits for a call in progress.
func WithGateWait(d time.Duration) Option {
	return func(l *Ledger) { l.gate = guard.New(guard.WithMaxWait(d)) }
}

func WithMetrics(m metrics.LedgerMetrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// New returns a ledger administered by admin, backed by db.
func New(log zerolog.Logger, db *badger.DB, admin types.Address, opts ...Option) (*Ledger, error) {
	if admin.IsZero() {
		return nil, fmt.Errorf("administrator: %w", ErrInvalidAddress)
	}
	l := &Ledger{
		db:      db,
		gate:    guard.New(),
		admin:   admin,
		mover:   JournalMover{},
		now:     time.Now,
		log:     log.With().Str("component", source).Logger(),
		emitter: events.Noop{},
		metrics: metrics.NewNoopCollector(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Admin returns the administrator address.
func (l *Ledger) Admin() types.Address {
	return l.admin
}

// Lock holds the ledger gate for a unit of work spanning several components.
// The returned context must be passed to the *Tx methods.
func (l *Ledger) Lock(ctx context.Context) (context.Context, func(), error) {
	return l.gate.Enter(ctx)
}

// Deposit credits amount of asset to account.
func (l *Ledger) Deposit(ctx context.Context, account types.Address, asset types.AssetID, amount uint64) error {
	ctx, release, err := l.gate.Enter(ctx)
	if err != nil {
		return l.fail(opDeposit, err)
	}
	defer release()

	err = storage.Update(l.db, func(tx *storage.Tx) error {
		return l.deposit(ctx, tx, account, asset, amount)
	})
	if err != nil {
		return l.fail(opDeposit, err)
	}
	return nil
}

// DepositTx is Deposit staged in a caller-owned transaction.
func (l *Ledger) DepositTx(ctx context.Context, tx *storage.Tx, account types.Address, asset types.AssetID, amount uint64) error {
	if !l.gate.Held(ctx) {
		return ErrGateNotHeld
	}
	if err := l.deposit(ctx, tx, account, asset, amount); err != nil {
		return l.fail(opDeposit, err)
	}
	return nil
}

// Transfer debits from and moves amount of asset out to to. Only authorized
// callers may transfer.
func (l *Ledger) Transfer(ctx context.Context, caller, from, to types.Address, amount uint64, asset types.AssetID) (types.ExecutionID, error) {
	ctx, release, err := l.gate.Enter(ctx)
	if err != nil {
		return types.ExecutionID{}, l.fail(opTransfer, err)
	}
	defer release()

	var record *ExecutionRecord
	err = storage.Update(l.db, func(tx *storage.Tx) error {
		record, err = l.transfer(ctx, tx, opTransfer, caller, from, to, amount, asset)
		return err
	})
	if err != nil {
		return types.ExecutionID{}, l.fail(opTransfer, err)
	}
	return record.ID, nil
}

// TransferTx is Transfer staged in a caller-owned transaction.
func (l *Ledger) TransferTx(ctx context.Context, tx *storage.Tx, caller, from, to types.Address, amount uint64, asset types.AssetID) (types.ExecutionID, error) {
	if !l.gate.Held(ctx) {
		return types.ExecutionID{}, ErrGateNotHeld
	}
	record, err := l.transfer(ctx, tx, opTransfer, caller, from, to, amount, asset)
	if err != nil {
		return types.ExecutionID{}, l.fail(opTransfer, err)
	}
	return record.ID, nil
}

// Withdraw debits account and moves amount of asset out of custody to account.
func (l *Ledger) Withdraw(ctx context.Context, caller, account types.Address, amount uint64, asset types.AssetID) (types.ExecutionID, error) {
	ctx, release, err := l.gate.Enter(ctx)
	if err != nil {
		return types.ExecutionID{}, l.fail(opWithdraw, err)
	}
	defer release()

	var record *ExecutionRecord
	err = storage.Update(l.db, func(tx *storage.Tx) error {
		record, err = l.transfer(ctx, tx, opWithdraw, caller, account, account, amount, asset)
		return err
	})
	if err != nil {
		return types.ExecutionID{}, l.fail(opWithdraw, err)
	}
	return record.ID, nil
}

// WithdrawTx is Withdraw staged in a caller-owned transaction.
func (l *Ledger) WithdrawTx(ctx context.Context, tx *storage.Tx, caller, account types.Address, amount uint64, asset types.AssetID) (types.ExecutionID, error) {
	if !l.gate.Held(ctx) {
		return types.ExecutionID{}, ErrGateNotHeld
	}
	record, err := l.transfer(ctx, tx, opWithdraw, caller, account, account, amount, asset)
	if err != nil {
		return types.ExecutionID{}, l.fail(opWithdraw, err)
	}
	return record.ID, nil
}

// BatchTransfer executes items in order as a single unit: either every item
// lands or none does.
func (l *Ledger) BatchTransfer(ctx context.Context, caller types.Address, items []TransferItem, asset types.AssetID) ([]types.ExecutionID, error) {
	ctx, release, err := l.gate.Enter(ctx)
	if err != nil {
		return nil, l.fail(opBatch, err)
	}
	defer release()

	var ids []types.ExecutionID
	err = storage.Update(l.db, func(tx *storage.Tx) error {
		if err := l.authorize(tx, caller); err != nil {
			return err
		}
		ids = make([]types.ExecutionID, 0, len(items))
		var volume uint64
		for i, item := range items {
			record, err := l.execute(ctx, tx, opBatch, item.From, item.To, item.Amount, asset)
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			ids = append(ids, record.ID)
			volume = saturatingAdd(volume, item.Amount)
		}

		now := l.now()
		executed := append([]types.ExecutionID(nil), ids...)
		tx.OnSucceed(func() {
			l.metrics.Movement(opBatch, len(executed), volume)
			l.emitter.Emit(events.Event{
				Kind:   events.BatchTransfer,
				Source: source,
				Caller: caller,
				Time:   now,
				Fields: map[string]interface{}{
					"asset":      asset.Hex(),
					"items":      len(executed),
					"volume":     volume,
					"executions": executed,
				},
			})
		})
		return nil
	})
	if err != nil {
		return nil, l.fail(opBatch, err)
	}
	return ids, nil
}

// SetAuthorizedCaller adds caller to or removes it from the allow-list.
// Only the administrator may call it; the administrator itself cannot be removed.
func (l *Ledger) SetAuthorizedCaller(ctx context.Context, admin, caller types.Address, enabled bool) error {
	_, release, err := l.gate.Enter(ctx)
	if err != nil {
		return l.fail(opAuth, err)
	}
	defer release()

	err = storage.Update(l.db, func(tx *storage.Tx) error {
		if admin != l.admin {
			return ErrUnauthorized
		}
		if caller.IsZero() {
			return ErrInvalidAddress
		}
		if caller == l.admin {
			if !enabled {
				return fmt.Errorf("administrator cannot be removed: %w", ErrInvalidAddress)
			}
			return nil
		}

		var before bool
		if err := tx.Do(storage.Check(authorizedKey(caller), &before)); err != nil {
			return err
		}
		if enabled {
			err = tx.Do(storage.Upsert(authorizedKey(caller), true))
		} else {
			err = tx.Do(storage.Remove(authorizedKey(caller)))
		}
		if err != nil {
			return fmt.Errorf("could not update allow-list: %w", err)
		}

		now := l.now()
		tx.OnSucceed(func() {
			l.log.Info().Str("caller", caller.Hex()).Bool("enabled", enabled).Msg("authorized caller updated")
			l.emitter.Emit(events.Event{
				Kind:   events.AuthorizationChanged,
				Source: source,
				Caller: admin,
				Time:   now,
				Fields: map[string]interface{}{
					"target": caller.Hex(),
					"before": before,
					"after":  enabled,
				},
			})
		})
		return nil
	})
	if err != nil {
		return l.fail(opAuth, err)
	}
	return nil
}

// Balance returns the balance of account in asset.
func (l *Ledger) Balance(ctx context.Context, account types.Address, asset types.AssetID) (uint64, error) {
	_, release, err := l.gate.Enter(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	var balance uint64
	err = storage.View(l.db, func(tx *storage.Tx) error {
		balance, err = l.balance(tx, account, asset)
		return err
	})
	return balance, err
}

// IsAuthorized reports whether addr may move funds out of custody.
func (l *Ledger) IsAuthorized(ctx context.Context, addr types.Address) (bool, error) {
	_, release, err := l.gate.Enter(ctx)
	if err != nil {
		return false, err
	}
	defer release()

	if addr == l.admin {
		return true, nil
	}
	var ok bool
	err = l.db.View(storage.Check(authorizedKey(addr), &ok))
	return ok, err
}

// ExecutionCount returns the number of executions debited from account.
func (l *Ledger) ExecutionCount(ctx context.Context, account types.Address) (uint64, error) {
	_, release, err := l.gate.Enter(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	var count uint64
	err = l.db.View(storage.RetrieveOrDefault(executionCountKey(account), &count))
	return count, err
}

// Stats returns the aggregate execution counters.
func (l *Ledger) Stats(ctx context.Context) (Stats, error) {
	_, release, err := l.gate.Enter(ctx)
	if err != nil {
		return Stats{}, err
	}
	defer release()

	var stats Stats
	err = l.db.View(storage.RetrieveOrDefault(statsKey(), &stats))
	return stats, err
}

// Execution returns the record of an executed transfer. It errors with
// storage.ErrNotFound for unknown ids.
func (l *Ledger) Execution(ctx context.Context, id types.ExecutionID) (*ExecutionRecord, error) {
	_, release, err := l.gate.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var record ExecutionRecord
	if err := l.db.View(storage.Retrieve(executionKey(id), &record)); err != nil {
		return nil, err
	}
	return &record, nil
}

// Payout returns the journaled payout of an execution when the ledger runs
// with the JournalMover.
func (l *Ledger) Payout(ctx context.Context, id types.ExecutionID) (*Payout, error) {
	_, release, err := l.gate.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var payout *Payout
	err = storage.View(l.db, func(tx *storage.Tx) error {
		payout, err = RetrievePayout(tx, id)
		return err
	})
	return payout, err
}

func (l *Ledger) fail(op string, err error) error {
	l.metrics.Failure(op, reason(err))
	l.log.Debug().Err(err).Str("operation", op).Msg("ledger call rejected")
	return err
}
