// tx.go - Unit of work over a badger transaction.
//
// A Tx stages every mutation of one entry point. Update commits the staged writes only
// if the whole function succeeds; otherwise the badger transaction is discarded and
// nothing lands. Side effects that must not outlive a rollback (events, metrics,
// read-cache fills) are registered with OnSucceed and run after the commit.

package storage

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"
)

// Tx wraps a badger transaction with post-commit callbacks.
// NOT CONCURRENCY SAFE
type Tx struct {
	DBTxn     *badger.Txn
	callbacks []func()
}

// OnSucceed schedules callback to run once the transaction has committed.
// Callbacks run in registration order.
func (tx *Tx) OnSucceed(callback func()) {
	tx.callbacks = append(tx.callbacks, callback)
}

// Do runs op against the underlying badger transaction.
func (tx *Tx) Do(op func(*badger.Txn) error) error {
	return op(tx.DBTxn)
}

// Update runs f in a read-write transaction and commits only if f returns nil.
func Update(db *badger.DB, f func(*Tx) error) error {
	dbTxn := db.NewTransaction(true)
	defer dbTxn.Discard()

	tx := &Tx{DBTxn: dbTxn}
	if err := f(tx); err != nil {
		return err
	}
	if err := dbTxn.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	for _, callback := range tx.callbacks {
		callback()
	}
	return nil
}

// View runs f in a read-only transaction.
func View(db *badger.DB, f func(*Tx) error) error {
	return db.View(func(dbTxn *badger.Txn) error {
		return f(&Tx{DBTxn: dbTxn})
	})
}
