// mover.go - Asset movers handing debited funds out of custody.

package custody

import (
	"context"
	"errors"
	"fmt"

	"privatepay/internal/storage"
	"privatepay/internal/types"
)

// AssetMover performs the external side of a debit. It runs inside the
// ledger's transaction: an error aborts the whole call and every staged
// mutation is discarded.
type AssetMover interface {
	Move(ctx context.Context, tx *storage.Tx, payout Payout) error
}

// JournalMover records every payout in the store, keyed by execution id, for
// a settlement process to pick up.
type JournalMover struct{}

func (JournalMover) Move(_ context.Context, tx *storage.Tx, payout Payout) error {
	err := tx.Do(storage.Insert(storage.MakeKey(storage.CodePayout, payout.Execution), payout))
	if errors.Is(err, storage.ErrAlreadyExists) {
		return fmt.Errorf("payout %s already journaled", payout.Execution)
	}
	return err
}

// RetrievePayout reads a journaled payout.
func RetrievePayout(tx *storage.Tx, id types.ExecutionID) (*Payout, error) {
	var payout Payout
	if err := tx.Do(storage.Retrieve(storage.MakeKey(storage.CodePayout, id), &payout)); err != nil {
		return nil, err
	}
	return &payout, nil
}

// MoverFunc adapts a function to AssetMover.
type MoverFunc func(ctx context.Context, tx *storage.Tx, payout Payout) error

func (f MoverFunc) Move(ctx context.Context, tx *storage.Tx, payout Payout) error {
	return f(ctx, tx, payout)
}
