// vault.go - Vault deposits and withdrawals mirrored into the custody ledger.

package orchestrator

import (
	"context"
	"fmt"
	"math"

	"privatepay/internal/events"
	"privatepay/internal/storage"
	"privatepay/internal/types"
)

// DepositFunds credits amount to the vault balance of account and deposits
// the same amount into the custody ledger on its behalf.
func (o *Orchestrator) DepositFunds(ctx context.Context, account types.Address, amount uint64) error {
	ctx, release, err := o.gate.EnterMutating(ctx)
	if err != nil {
		return o.reject(err)
	}
	defer release()

	ctx, releaseLedger, err := o.ledger.Lock(ctx)
	if err != nil {
		return o.reject(err)
	}
	defer releaseLedger()

	err = storage.Update(o.db, func(tx *storage.Tx) error {
		if amount == 0 {
			return ErrInvalidAmount
		}
		if account.IsZero() {
			return ErrInvalidAddress
		}
		before, err := o.vaultBalance(tx, account)
		if err != nil {
			return err
		}
		if before > math.MaxUint64-amount {
			return fmt.Errorf("%w: vault balance overflow", ErrInvalidAmount)
		}
		if err := tx.Do(storage.Upsert(vaultKey(account), before+amount)); err != nil {
			return fmt.Errorf("could not credit vault: %w", err)
		}
		if err := o.ledger.DepositTx(ctx, tx, account, types.NativeAsset, amount); err != nil {
			return fmt.Errorf("custody deposit: %w", err)
		}

		now := o.now()
		tx.OnSucceed(func() {
			o.metrics.VaultMovement("deposit", amount)
			o.emitter.Emit(events.Event{
				Kind:   events.VaultDeposit,
				Source: source,
				Caller: account,
				Time:   now,
				Fields: map[string]interface{}{
					"amount": amount,
					"before": before,
					"after":  before + amount,
				},
			})
		})
		return nil
	})
	if err != nil {
		return o.reject(err)
	}
	return nil
}

// WithdrawFunds debits amount from the vault balance of account and has the
// custody ledger pay it out to account.
func (o *Orchestrator) WithdrawFunds(ctx context.Context, account types.Address, amount uint64) (types.ExecutionID, error) {
	ctx, release, err := o.gate.EnterMutating(ctx)
	if err != nil {
		return types.ExecutionID{}, o.reject(err)
	}
	defer release()

	ctx, releaseLedger, err := o.ledger.Lock(ctx)
	if err != nil {
		return types.ExecutionID{}, o.reject(err)
	}
	defer releaseLedger()

	var execution types.ExecutionID
	err = storage.Update(o.db, func(tx *storage.Tx) error {
		if amount == 0 {
			return ErrInvalidAmount
		}
		if account.IsZero() {
			return ErrInvalidAddress
		}
		before, err := o.vaultBalance(tx, account)
		if err != nil {
			return err
		}
		if before < amount {
			return fmt.Errorf("%w: vault holds %d, needs %d", ErrInsufficientBalance, before, amount)
		}
		if err := tx.Do(storage.Upsert(vaultKey(account), before-amount)); err != nil {
			return fmt.Errorf("could not debit vault: %w", err)
		}
		execution, err = o.ledger.WithdrawTx(ctx, tx, o.self, account, amount, types.NativeAsset)
		if err != nil {
			return fmt.Errorf("custody withdrawal: %w", err)
		}

		now := o.now()
		tx.OnSucceed(func() {
			o.metrics.VaultMovement("withdraw", amount)
			o.emitter.Emit(events.Event{
				Kind:   events.VaultWithdraw,
				Source: source,
				Caller: account,
				Time:   now,
				Fields: map[string]interface{}{
					"amount":    amount,
					"before":    before,
					"after":     before - amount,
					"execution": execution.Hex(),
				},
			})
		})
		return nil
	})
	if err != nil {
		return types.ExecutionID{}, o.reject(err)
	}
	return execution, nil
}
