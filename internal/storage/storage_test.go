package storage_test

import (
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privatepay/internal/storage"
	"privatepay/internal/testutil"
	"privatepay/internal/types"
)

type record struct {
	Owner  types.Address
	Amount uint64
}

func TestOperations(t *testing.T) {
	testutil.RunWithDB(t, func(db *badger.DB) {
		owner := testutil.AddressFixture()
		key := storage.MakeKey(storage.CodeBalance, owner)
		expected := record{Owner: owner, Amount: 42}

		t.Run("Retrieve nonexistent", func(t *testing.T) {
			var actual record
			err := db.View(storage.Retrieve(key, &actual))
			assert.ErrorIs(t, err, storage.ErrNotFound)
		})

		t.Run("Insert", func(t *testing.T) {
			require.NoError(t, db.Update(storage.Insert(key, expected)))

			var actual record
			require.NoError(t, db.View(storage.Retrieve(key, &actual)))
			assert.Equal(t, expected, actual)
		})

		t.Run("Insert duplicate", func(t *testing.T) {
			err := db.Update(storage.Insert(key, expected))
			assert.ErrorIs(t, err, storage.ErrAlreadyExists)
		})

		t.Run("Check", func(t *testing.T) {
			var exists bool
			require.NoError(t, db.View(storage.Check(key, &exists)))
			assert.True(t, exists)
		})

		t.Run("Upsert", func(t *testing.T) {
			expected.Amount = 7
			require.NoError(t, db.Update(storage.Upsert(key, expected)))

			var actual record
			require.NoError(t, db.View(storage.Retrieve(key, &actual)))
			assert.Equal(t, uint64(7), actual.Amount)
		})

		t.Run("RetrieveOrDefault", func(t *testing.T) {
			other := storage.MakeKey(storage.CodeBalance, testutil.AddressFixture())
			actual := record{Amount: 99}
			require.NoError(t, db.View(storage.RetrieveOrDefault(other, &actual)))
			assert.Equal(t, uint64(99), actual.Amount)
		})
	})
}

func TestUpdateRollsBackOnError(t *testing.T) {
	testutil.RunWithDB(t, func(db *badger.DB) {
		key := storage.MakeKey(storage.CodeCommitment, testutil.HashFixture())
		fired := false
		boom := errors.New("boom")

		err := storage.Update(db, func(tx *storage.Tx) error {
			if err := tx.Do(storage.Insert(key, true)); err != nil {
				return err
			}
			tx.OnSucceed(func() { fired = true })
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.False(t, fired, "callbacks must not run after a rollback")

		var exists bool
		require.NoError(t, db.View(storage.Check(key, &exists)))
		assert.False(t, exists, "staged write must be discarded")
	})
}

func TestUpdateRunsCallbacksInOrder(t *testing.T) {
	testutil.RunWithDB(t, func(db *badger.DB) {
		var order []int
		err := storage.Update(db, func(tx *storage.Tx) error {
			tx.OnSucceed(func() { order = append(order, 1) })
			tx.OnSucceed(func() { order = append(order, 2) })
			return tx.Do(storage.Upsert(storage.MakeKey(storage.CodeGlobalStats), uint64(1)))
		})
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, order)
	})
}

func TestMakeKey(t *testing.T) {
	a := types.MustParseAddress("0x00000000000000000000000000000000000000aa")
	key := storage.MakeKey(storage.CodeBalance, a, uint64(1))
	require.Len(t, key, 1+types.AddressLength+8)
	assert.Equal(t, storage.CodeBalance, key[0])
	assert.Equal(t, byte(0xaa), key[types.AddressLength])
	assert.Equal(t, byte(1), key[len(key)-1])
}
