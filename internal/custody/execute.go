// execute.go - Balance bookkeeping and the single-execution path shared by every movement.

package custody

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"privatepay/internal/events"
	"privatepay/internal/storage"
	"privatepay/internal/types"
)

func balanceKey(account types.Address, asset types.AssetID) []byte {
	return storage.MakeKey(storage.CodeBalance, account, asset)
}

func authorizedKey(addr types.Address) []byte {
	return storage.MakeKey(storage.CodeAuthorized, addr)
}

func executionKey(id types.ExecutionID) []byte {
	return storage.MakeKey(storage.CodeExecution, id)
}

func executionCountKey(account types.Address) []byte {
	return storage.MakeKey(storage.CodeExecutionCount, account)
}

func statsKey() []byte {
	return storage.MakeKey(storage.CodeLedgerStats)
}

// executionID derives the identifier of an execution from its parameters, the
// global execution counter and the current time.
func executionID(from, to types.Address, amount uint64, asset types.AssetID, counter uint64, now time.Time) types.ExecutionID {
	return types.NewHasher().
		Address(from).
		Address(to).
		Uint64(amount).
		Address(asset).
		Uint64(counter).
		Int64(now.UnixNano()).
		Sum()
}

func (l *Ledger) balance(tx *storage.Tx, account types.Address, asset types.AssetID) (uint64, error) {
	var balance uint64
	if err := tx.Do(storage.RetrieveOrDefault(balanceKey(account, asset), &balance)); err != nil {
		return 0, fmt.Errorf("could not read balance: %w", err)
	}
	return balance, nil
}

func (l *Ledger) authorize(tx *storage.Tx, caller types.Address) error {
	if caller == l.admin {
		return nil
	}
	var ok bool
	if err := tx.Do(storage.Check(authorizedKey(caller), &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnauthorized, caller)
	}
	return nil
}

func (l *Ledger) deposit(_ context.Context, tx *storage.Tx, account types.Address, asset types.AssetID, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if account.IsZero() {
		return ErrInvalidAddress
	}

	before, err := l.balance(tx, account, asset)
	if err != nil {
		return err
	}
	if before > math.MaxUint64-amount {
		return fmt.Errorf("%w: balance overflow", ErrInvalidAmount)
	}
	after := before + amount
	if err := tx.Do(storage.Upsert(balanceKey(account, asset), after)); err != nil {
		return fmt.Errorf("could not credit balance: %w", err)
	}

	now := l.now()
	tx.OnSucceed(func() {
		l.metrics.Deposit(amount)
		l.emitter.Emit(events.Event{
			Kind:   events.Deposit,
			Source: source,
			Caller: account,
			Time:   now,
			Fields: map[string]interface{}{
				"account": account.Hex(),
				"asset":   asset.Hex(),
				"amount":  amount,
				"before":  before,
				"after":   after,
			},
		})
	})
	return nil
}

// transfer authorizes caller and executes a single movement.
func (l *Ledger) transfer(ctx context.Context, tx *storage.Tx, op string, caller, from, to types.Address, amount uint64, asset types.AssetID) (*ExecutionRecord, error) {
	if err := l.authorize(tx, caller); err != nil {
		return nil, err
	}
	record, err := l.execute(ctx, tx, op, from, to, amount, asset)
	if err != nil {
		return nil, err
	}

	kind := events.Transfer
	if op == opWithdraw {
		kind = events.Withdraw
	}
	tx.OnSucceed(func() {
		l.metrics.Movement(op, 1, amount)
		l.emitter.Emit(events.Event{
			Kind:   kind,
			Source: source,
			Caller: caller,
			Time:   record.Time(),
			Fields: map[string]interface{}{
				"execution": record.ID.Hex(),
				"from":      from.Hex(),
				"to":        to.Hex(),
				"asset":     asset.Hex(),
				"amount":    amount,
			},
		})
	})
	return record, nil
}

// execute debits from, hands the payout to the mover and, once the asset has
// moved, appends the execution record and bumps the counters.
func (l *Ledger) execute(ctx context.Context, tx *storage.Tx, op string, from, to types.Address, amount uint64, asset types.AssetID) (*ExecutionRecord, error) {
	if from.IsZero() || to.IsZero() {
		return nil, ErrInvalidAddress
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}

	before, err := l.balance(tx, from, asset)
	if err != nil {
		return nil, err
	}
	if before < amount {
		return nil, fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientBalance, from, before, amount)
	}

	var stats Stats
	if err := tx.Do(storage.RetrieveOrDefault(statsKey(), &stats)); err != nil {
		return nil, fmt.Errorf("could not read ledger stats: %w", err)
	}
	now := l.now()
	id := executionID(from, to, amount, asset, stats.TotalExecutions, now)

	var executed bool
	if err := tx.Do(storage.Check(executionKey(id), &executed)); err != nil {
		return nil, err
	}
	if executed {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExecuted, id)
	}

	if err := tx.Do(storage.Upsert(balanceKey(from, asset), before-amount)); err != nil {
		return nil, fmt.Errorf("could not debit balance: %w", err)
	}

	payout := Payout{
		Execution: id,
		Asset:     asset,
		From:      from,
		To:        to,
		Amount:    amount,
		Timestamp: now.UnixNano(),
	}
	if err := l.mover.Move(ctx, tx, payout); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	record := ExecutionRecord{
		ID:        id,
		Operation: op,
		From:      from,
		To:        to,
		Amount:    amount,
		Asset:     asset,
		Timestamp: now.UnixNano(),
	}
	err = tx.Do(storage.Insert(executionKey(id), record))
	if errors.Is(err, storage.ErrAlreadyExists) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExecuted, id)
	}
	if err != nil {
		return nil, fmt.Errorf("could not store execution: %w", err)
	}

	stats.TotalExecutions++
	stats.TotalVolume = saturatingAdd(stats.TotalVolume, amount)
	if err := tx.Do(storage.Upsert(statsKey(), stats)); err != nil {
		return nil, fmt.Errorf("could not update ledger stats: %w", err)
	}

	var count uint64
	if err := tx.Do(storage.RetrieveOrDefault(executionCountKey(from), &count)); err != nil {
		return nil, err
	}
	if err := tx.Do(storage.Upsert(executionCountKey(from), count+1)); err != nil {
		return nil, fmt.Errorf("could not update execution count: %w", err)
	}

	return &record, nil
}

func saturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
