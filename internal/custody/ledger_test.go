package custody

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privatepay/internal/events"
	"privatepay/internal/guard"
	"privatepay/internal/storage"
	"privatepay/internal/testutil"
	"privatepay/internal/types"
)

var native = types.NativeAsset

type fixture struct {
	ledger   *Ledger
	admin    types.Address
	operator types.Address
	recorder *events.Recorder
}

func newFixture(t *testing.T, db *badger.DB, opts ...Option) *fixture {
	admin := testutil.AddressFixture()
	recorder := events.NewRecorder()
	opts = append([]Option{WithEmitter(recorder), WithClock(steppingClock())}, opts...)
	ledger, err := New(zerolog.Nop(), db, admin, opts...)
	require.NoError(t, err)

	operator := testutil.AddressFixture()
	require.NoError(t, ledger.SetAuthorizedCaller(context.Background(), admin, operator, true))
	recorder.Reset()

	return &fixture{ledger: ledger, admin: admin, operator: operator, recorder: recorder}
}

// steppingClock advances one second on every reading.
func steppingClock() func() time.Time {
	now := time.Unix(1_700_000_000, 0).UTC()
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func balanceOf(t *testing.T, l *Ledger, account types.Address) uint64 {
	balance, err := l.Balance(context.Background(), account, native)
	require.NoError(t, err)
	return balance
}

func TestNewRequiresAdmin(t *testing.T) {
	testutil.RunWithDB(t, func(db *badger.DB) {
		_, err := New(zerolog.Nop(), db, types.ZeroAddress)
		assert.ErrorIs(t, err, ErrInvalidAddress)
	})
}

func TestDeposit(t *testing.T) {
	testutil.RunWithDB(t, func(db *badger.DB) {
		f := newFixture(t, db)
		ctx := context.Background()
		alice := testutil.AddressFixture()
		token := testutil.AddressFixture()

		t.Run("zero amount", func(t *testing.T) {
			err := f.ledger.Deposit(ctx, alice, native, 0)
			assert.ErrorIs(t, err, ErrInvalidAmount)
			assert.Empty(t, f.recorder.Events())
		})

		t.Run("credits per asset", func(t *testing.T) {
			require.NoError(t, f.ledger.Deposit(ctx, alice, native, 10))
			require.NoError(t, f.ledger.Deposit(ctx, alice, native, 5))
			require.NoError(t, f.ledger.Deposit(ctx, alice, token, 7))

			assert.Equal(t, uint64(15), balanceOf(t, f.ledger, alice))
			tokens, err := f.ledger.Balance(ctx, alice, token)
			require.NoError(t, err)
			assert.Equal(t, uint64(7), tokens)
		})

		t.Run("emits before and after", func(t *testing.T) {
			deposits := f.recorder.OfKind(events.Deposit)
			require.Len(t, deposits, 3)
			assert.Equal(t, uint64(10), deposits[1].Fields["before"])
			assert.Equal(t, uint64(15), deposits[1].Fields["after"])
		})

		t.Run("overflow", func(t *testing.T) {
			bob := testutil.AddressFixture()
			require.NoError(t, f.ledger.Deposit(ctx, bob, native, ^uint64(0)))
			err := f.ledger.Deposit(ctx, bob, native, 1)
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	})
}

func TestTransfer(t *testing.T) {
	testutil.RunWithDB(t, func(db *badger.DB) {
		f := newFixture(t, db)
		ctx := context.Background()
		alice, bob := testutil.AddressFixture(), testutil.AddressFixture()
		require.NoError(t, f.ledger.Deposit(ctx, alice, native, 100))
		f.recorder.Reset()

		t.Run("unauthorized caller", func(t *testing.T) {
			_, err := f.ledger.Transfer(ctx, alice, alice, bob, 10, native)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})

		t.Run("zero recipient", func(t *testing.T) {
			_, err := f.ledger.Transfer(ctx, f.operator, alice, types.ZeroAddress, 10, native)
			assert.ErrorIs(t, err, ErrInvalidAddress)
		})

		t.Run("zero amount", func(t *testing.T) {
			_, err := f.ledger.Transfer(ctx, f.operator, alice, bob, 0, native)
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})

		t.Run("insufficient balance", func(t *testing.T) {
			_, err := f.ledger.Transfer(ctx, f.operator, alice, bob, 101, native)
			assert.ErrorIs(t, err, ErrInsufficientBalance)
			assert.Equal(t, uint64(100), balanceOf(t, f.ledger, alice))
		})

		assert.Empty(t, f.recorder.Events())

		t.Run("executes", func(t *testing.T) {
			id, err := f.ledger.Transfer(ctx, f.operator, alice, bob, 30, native)
			require.NoError(t, err)

			assert.Equal(t, uint64(70), balanceOf(t, f.ledger, alice))
			// the recipient is paid out of custody, not credited
			assert.Equal(t, uint64(0), balanceOf(t, f.ledger, bob))

			record, err := f.ledger.Execution(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, alice, record.From)
			assert.Equal(t, bob, record.To)
			assert.Equal(t, uint64(30), record.Amount)
			assert.Equal(t, opTransfer, record.Operation)

			payout, err := f.ledger.Payout(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, bob, payout.To)
			assert.Equal(t, uint64(30), payout.Amount)

			count, err := f.ledger.ExecutionCount(ctx, alice)
			require.NoError(t, err)
			assert.Equal(t, uint64(1), count)

			stats, err := f.ledger.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, Stats{TotalExecutions: 1, TotalVolume: 30}, stats)

			transfers := f.recorder.OfKind(events.Transfer)
			require.Len(t, transfers, 1)
			assert.Equal(t, f.operator, transfers[0].Caller)
		})

		t.Run("admin is always authorized", func(t *testing.T) {
			_, err := f.ledger.Transfer(ctx, f.admin, alice, bob, 1, native)
			require.NoError(t, err)
		})

		t.Run("identical parameters yield distinct executions", func(t *testing.T) {
			first, err := f.ledger.Transfer(ctx, f.operator, alice, bob, 2, native)
			require.NoError(t, err)
			second, err := f.ledger.Transfer(ctx, f.operator, alice, bob, 2, native)
			require.NoError(t, err)
			assert.NotEqual(t, first, second)
		})

		t.Run("unknown execution", func(t *testing.T) {
			_, err := f.ledger.Execution(ctx, testutil.HashFixture())
			assert.ErrorIs(t, err, storage.ErrNotFound)
		})
	})
}

func TestWithdraw(t *testing.T) {
	testutil.RunWithDB(t, func(db *badger.DB) {
		f := newFixture(t, db)
		ctx := context.Background()
		alice := testutil.AddressFixture()
		require.NoError(t, f.ledger.Deposit(ctx, alice, native, 20))

		_, err := f.ledger.Withdraw(ctx, alice, alice, 5, native)
		assert.ErrorIs(t, err, ErrUnauthorized)

		_, err = f.ledger.Withdraw(ctx, f.operator, alice, 21, native)
		assert.ErrorIs(t, err, ErrInsufficientBalance)

		id, err := f.ledger.Withdraw(ctx, f.operator, alice, 5, native)
		require.NoError(t, err)
		assert.Equal(t, uint64(15), balanceOf(t, f.ledger, alice))

		payout, err := f.ledger.Payout(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, alice, payout.To)
		assert.Len(t, f.recorder.OfKind(events.Withdraw), 1)
	})
}

func TestFailedMovementRollsBack(t *testing.T) {
	testutil.RunWithDB(t, func(db *badger.DB) {
		broken := MoverFunc(func(context.Context, *storage.Tx, Payout) error {
			return errors.New("recipient rejected the asset")
		})
		f := newFixture(t, db, WithMover(broken))
		ctx := context.Background()
		alice, bob := testutil.AddressFixture(), testutil.AddressFixture()
		require.NoError(t, f.ledger.Deposit(ctx, alice, native, 50))
		f.recorder.Reset()

		_, err := f.ledger.Transfer(ctx, f.operator, alice, bob, 10, native)
		assert.ErrorIs(t, err, ErrTransferFailed)

		assert.Equal(t, uint64(50), balanceOf(t, f.ledger, alice))
		stats, err := f.ledger.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, Stats{}, stats)
		assert.Empty(t, f.recorder.Events())
	})
}

func TestBatchTransfer(t *testing.T) {
	testutil.RunWithDB(t, func(db *badger.DB) {
		f := newFixture(t, db)
		ctx := context.Background()
		alice, bob, carol := testutil.AddressFixture(), testutil.AddressFixture(), testutil.AddressFixture()
		require.NoError(t, f.ledger.Deposit(ctx, alice, native, 100))
		require.NoError(t, f.ledger.Deposit(ctx, bob, native, 5))
		f.recorder.Reset()

		t.Run("one short item rolls back the batch", func(t *testing.T) {
			items := []TransferItem{
				{From: alice, To: carol, Amount: 10},
				{From: bob, To: carol, Amount: 6},
				{From: alice, To: carol, Amount: 10},
			}
			_, err := f.ledger.BatchTransfer(ctx, f.operator, items, native)
			assert.ErrorIs(t, err, ErrInsufficientBalance)

			assert.Equal(t, uint64(100), balanceOf(t, f.ledger, alice))
			assert.Equal(t, uint64(5), balanceOf(t, f.ledger, bob))
			stats, err := f.ledger.Stats(ctx)
			require.NoError(t, err)
			assert.Zero(t, stats.TotalExecutions)
			assert.Empty(t, f.recorder.Events())
		})

		t.Run("unauthorized", func(t *testing.T) {
			_, err := f.ledger.BatchTransfer(ctx, carol, []TransferItem{{From: alice, To: carol, Amount: 1}}, native)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})

		t.Run("executes every item", func(t *testing.T) {
			items := []TransferItem{
				{From: alice, To: carol, Amount: 10},
				{From: bob, To: carol, Amount: 5},
				{From: alice, To: bob, Amount: 20},
			}
			ids, err := f.ledger.BatchTransfer(ctx, f.operator, items, native)
			require.NoError(t, err)
			require.Len(t, ids, 3)

			assert.Equal(t, uint64(70), balanceOf(t, f.ledger, alice))
			assert.Equal(t, uint64(0), balanceOf(t, f.ledger, bob))
			stats, err := f.ledger.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, Stats{TotalExecutions: 3, TotalVolume: 35}, stats)

			batches := f.recorder.OfKind(events.BatchTransfer)
			require.Len(t, batches, 1)
			assert.Equal(t, 3, batches[0].Fields["items"])
		})
	})
}

func TestSetAuthorizedCaller(t *testing.T) {
	testutil.RunWithDB(t, func(db *badger.DB) {
		f := newFixture(t, db)
		ctx := context.Background()
		other := testutil.AddressFixture()

		err := f.ledger.SetAuthorizedCaller(ctx, f.operator, other, true)
		assert.ErrorIs(t, err, ErrUnauthorized)

		err = f.ledger.SetAuthorizedCaller(ctx, f.admin, f.admin, false)
		assert.ErrorIs(t, err, ErrInvalidAddress)

		ok, err := f.ledger.IsAuthorized(ctx, f.admin)
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, f.ledger.SetAuthorizedCaller(ctx, f.admin, f.operator, false))
		ok, err = f.ledger.IsAuthorized(ctx, f.operator)
		require.NoError(t, err)
		assert.False(t, ok)

		changes := f.recorder.OfKind(events.AuthorizationChanged)
		require.Len(t, changes, 1)
		assert.Equal(t, true, changes[0].Fields["before"])
		assert.Equal(t, false, changes[0].Fields["after"])
	})
}

func TestGate(t *testing.T) {
	testutil.RunWithDB(t, func(db *badger.DB) {
		var f *fixture
		reentrant := MoverFunc(func(ctx context.Context, _ *storage.Tx, p Payout) error {
			return f.ledger.Deposit(ctx, p.To, p.Asset, p.Amount)
		})
		f = newFixture(t, db, WithMover(reentrant))
		ctx := context.Background()
		alice, bob := testutil.AddressFixture(), testutil.AddressFixture()
		require.NoError(t, f.ledger.Deposit(ctx, alice, native, 10))

		t.Run("reentry from the mover", func(t *testing.T) {
			_, err := f.ledger.Transfer(ctx, f.operator, alice, bob, 1, native)
			assert.ErrorIs(t, err, ErrTransferFailed)
			assert.Equal(t, uint64(10), balanceOf(t, f.ledger, alice))
		})

		t.Run("tx methods need the gate", func(t *testing.T) {
			err := storage.Update(db, func(tx *storage.Tx) error {
				return f.ledger.DepositTx(ctx, tx, alice, native, 1)
			})
			assert.ErrorIs(t, err, ErrGateNotHeld)
		})

		t.Run("tx methods join an outer transaction", func(t *testing.T) {
			locked, release, err := f.ledger.Lock(ctx)
			require.NoError(t, err)
			err = storage.Update(db, func(tx *storage.Tx) error {
				return f.ledger.DepositTx(locked, tx, bob, native, 3)
			})
			release()
			require.NoError(t, err)
			assert.Equal(t, uint64(3), balanceOf(t, f.ledger, bob))
		})

		t.Run("public calls under a held gate are reentrant", func(t *testing.T) {
			locked, release, err := f.ledger.Lock(ctx)
			require.NoError(t, err)
			defer release()
			err = f.ledger.Deposit(locked, bob, native, 1)
			assert.ErrorIs(t, err, guard.ErrReentrantCall)
		})
	})
}

func TestGateWithFreshContext(t *testing.T) {
	testutil.RunWithDB(t, func(db *badger.DB) {
		var f *fixture
		detached := MoverFunc(func(_ context.Context, _ *storage.Tx, p Payout) error {
			return f.ledger.Deposit(context.Background(), p.To, p.Asset, p.Amount)
		})
		f = newFixture(t, db, WithMover(detached), WithGateWait(20*time.Millisecond))
		ctx := context.Background()
		alice, bob := testutil.AddressFixture(), testutil.AddressFixture()
		require.NoError(t, f.ledger.Deposit(ctx, alice, native, 10))

		_, err := f.ledger.Transfer(ctx, f.operator, alice, bob, 1, native)
		assert.ErrorIs(t, err, ErrTransferFailed)
		assert.ErrorIs(t, err, guard.ErrBusy)
		assert.Equal(t, uint64(10), balanceOf(t, f.ledger, alice))
		assert.Zero(t, balanceOf(t, f.ledger, bob))
	})
}

// Random sequences of ledger calls never drive a balance below zero and the
// ledger always agrees with a simple in-memory model.
func TestBalancesTrackModel(t *testing.T) {
	testutil.RunWithDB(t, func(db *badger.DB) {
		f := newFixture(t, db)
		ctx := context.Background()
		rng := rand.New(rand.NewSource(7))

		accounts := make([]types.Address, 4)
		for i := range accounts {
			accounts[i] = testutil.AddressFixture()
		}
		model := make(map[types.Address]uint64)

		for i := 0; i < 200; i++ {
			a := accounts[rng.Intn(len(accounts))]
			b := accounts[rng.Intn(len(accounts))]
			amount := uint64(rng.Intn(40))

			switch rng.Intn(3) {
			case 0:
				err := f.ledger.Deposit(ctx, a, native, amount)
				if amount == 0 {
					require.ErrorIs(t, err, ErrInvalidAmount)
					continue
				}
				require.NoError(t, err)
				model[a] += amount
			case 1:
				_, err := f.ledger.Transfer(ctx, f.operator, a, b, amount, native)
				if amount == 0 {
					require.ErrorIs(t, err, ErrInvalidAmount)
				} else if model[a] < amount {
					require.ErrorIs(t, err, ErrInsufficientBalance)
				} else {
					require.NoError(t, err)
					model[a] -= amount
				}
			case 2:
				_, err := f.ledger.Withdraw(ctx, f.operator, a, amount, native)
				if amount == 0 {
					require.ErrorIs(t, err, ErrInvalidAmount)
				} else if model[a] < amount {
					require.ErrorIs(t, err, ErrInsufficientBalance)
				} else {
					require.NoError(t, err)
					model[a] -= amount
				}
			}
		}

		for _, account := range accounts {
			assert.Equal(t, model[account], balanceOf(t, f.ledger, account))
		}
	})
}
