// operation.go - Low-level point operations on the badger store.
//
// Every operation is a closure over a badger transaction so callers can compose
// several of them into one atomic unit.

package storage

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"
)

// Insert encodes entity and stores it under key. It errors with ErrAlreadyExists
// if the key is taken.
func Insert(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		if err == nil {
			return ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("could not check key: %w", err)
		}
		return set(tx, key, entity)
	}
}

// Upsert encodes entity and stores it under key, replacing any previous value.
func Upsert(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		return set(tx, key, entity)
	}
}

// Retrieve decodes the value under key into entity, which must be a pointer.
// It errors with ErrNotFound if the key is missing.
func Retrieve(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("could not load data: %w", err)
		}
		return item.Value(func(val []byte) error {
			return decode(val, entity)
		})
	}
}

// RetrieveOrDefault is Retrieve that leaves entity untouched when the key is missing.
func RetrieveOrDefault(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		err := Retrieve(key, entity)(tx)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
}

// Check sets exists to whether a value is stored under key.
func Check(key []byte, exists *bool) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			*exists = false
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not check existence: %w", err)
		}
		*exists = true
		return nil
	}
}

// Remove deletes key. Missing keys are a no-op.
func Remove(key []byte) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		if err := tx.Delete(key); err != nil {
			return fmt.Errorf("could not remove key: %w", err)
		}
		return nil
	}
}

func set(tx *badger.Txn, key []byte, entity interface{}) error {
	val, err := encode(entity)
	if err != nil {
		return err
	}
	if err := tx.Set(key, val); err != nil {
		return fmt.Errorf("could not store data: %w", err)
	}
	return nil
}
