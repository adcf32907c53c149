// testutil.go - Fixtures shared by the package tests.

// Package testutil holds fixtures shared by the package tests.
package testutil

import (
	"crypto/rand"
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/require"

	"privatepay/internal/storage"
	"privatepay/internal/types"
)

// InMemoryDB opens a volatile badger store that is closed when the test ends.
func InMemoryDB(t testing.TB) *badger.DB {
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// RunWithDB runs f against a fresh in-memory store.
func RunWithDB(t testing.TB, f func(*badger.DB)) {
	f(InMemoryDB(t))
}

// AddressFixture returns a random non-zero address.
func AddressFixture() types.Address {
	var a types.Address
	for a.IsZero() {
		_, _ = rand.Read(a[:])
	}
	return a
}

// HashFixture returns a random hash.
func HashFixture() types.Hash {
	var h types.Hash
	_, _ = rand.Read(h[:])
	return h
}
