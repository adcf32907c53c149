package guard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate(t *testing.T) {
	t.Run("reentry through propagated context fails", func(t *testing.T) {
		g := New()
		ctx, release, err := g.Enter(context.Background())
		require.NoError(t, err)
		defer release()

		assert.True(t, g.Held(ctx))
		_, _, err = g.Enter(ctx)
		assert.ErrorIs(t, err, ErrReentrantCall)
	})

	t.Run("nested call with a fresh context gives up", func(t *testing.T) {
		g := New(WithMaxWait(20 * time.Millisecond))
		_, release, err := g.Enter(context.Background())
		require.NoError(t, err)
		defer release()

		start := time.Now()
		_, _, err = g.Enter(context.Background())
		assert.ErrorIs(t, err, ErrBusy)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("waiting ends with the caller's context", func(t *testing.T) {
		g := New(WithMaxWait(0))
		_, release, err := g.Enter(context.Background())
		require.NoError(t, err)
		defer release()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, _, err = g.Enter(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("released gate admits the next caller", func(t *testing.T) {
		g := New()
		_, release, err := g.Enter(context.Background())
		require.NoError(t, err)

		entered := make(chan error, 1)
		go func() {
			_, next, err := g.Enter(context.Background())
			if err == nil {
				next()
			}
			entered <- err
		}()
		release()
		select {
		case err := <-entered:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("waiting caller was not admitted")
		}
	})

	t.Run("distinct gates nest", func(t *testing.T) {
		outer, inner := New(), New()
		ctx, releaseOuter, err := outer.Enter(context.Background())
		require.NoError(t, err)
		defer releaseOuter()

		ctx, releaseInner, err := inner.Enter(ctx)
		require.NoError(t, err)
		releaseInner()
		assert.True(t, outer.Held(ctx))
	})

	t.Run("paused gate rejects mutations only", func(t *testing.T) {
		g := New()
		g.SetPaused(true)

		_, _, err := g.EnterMutating(context.Background())
		assert.ErrorIs(t, err, ErrPaused)

		_, release, err := g.Enter(context.Background())
		require.NoError(t, err)
		release()

		g.SetPaused(false)
		_, release, err = g.EnterMutating(context.Background())
		require.NoError(t, err)
		release()
	})

	t.Run("calls are serialized", func(t *testing.T) {
		g := New()
		counter := 0
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, release, err := g.Enter(context.Background())
				if err != nil {
					return
				}
				counter++
				release()
			}()
		}
		wg.Wait()
		assert.Equal(t, 50, counter)
	})
}
