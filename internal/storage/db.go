// db.go - Opening persistent and in-memory badger stores.

package storage

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"
)

// Open opens (or creates) a persistent badger store in dir.
func Open(dir string) (*badger.DB, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("could not open store at %s: %w", dir, err)
	}
	return db, nil
}

// OpenInMemory opens a volatile store. Used by tests and by the daemon when no
// data directory is configured.
func OpenInMemory() (*badger.DB, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("could not open in-memory store: %w", err)
	}
	return db, nil
}
