// guard.go - Re-entrancy and pause gate for component entry points.

// Package guard serializes the entry points of a component instance.
//
// A Gate is held for the whole duration of an entry point. The context handed
// back by Enter carries a marker for that gate; an attempt to enter the same
// gate again with a derived context fails with ErrReentrantCall at once.
// Waiting for a held gate ends when the caller's context is done or after the
// gate's maximum wait, so a nested call that dropped the marker fails with
// ErrBusy instead of blocking forever. Distinct gates may be nested, always in
// the same order.
package guard

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

var (
	ErrReentrantCall = errors.New("reentrant call")
	ErrPaused        = errors.New("paused")
	ErrBusy          = errors.New("gate busy")
)

// DefaultMaxWait bounds how long Enter waits for a held gate.
const DefaultMaxWait = 5 * time.Second

type marker struct {
	gate *Gate
}

// Gate is a mutual-exclusion gate with re-entry detection and a pause switch.
type Gate struct {
	sem     *semaphore.Weighted
	maxWait time.Duration
	paused  atomic.Bool
}

type Option func(*Gate)

// WithMaxWait sets the longest Enter waits for the gate. Zero waits until the
// caller's context is done.
func WithMaxWait(d time.Duration) Option {
	return func(g *Gate) { g.maxWait = d }
}

// New returns an open, unpaused gate.
func New(opts ...Option) *Gate {
	g := &Gate{
		sem:     semaphore.NewWeighted(1),
		maxWait: DefaultMaxWait,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Enter blocks until the gate is free and returns the context to propagate
// into nested calls together with the release function.
func (g *Gate) Enter(ctx context.Context) (context.Context, func(), error) {
	if ctx.Value(marker{g}) != nil {
		return nil, nil, ErrReentrantCall
	}
	if !g.sem.TryAcquire(1) {
		if err := g.wait(ctx); err != nil {
			return nil, nil, err
		}
	}
	return context.WithValue(ctx, marker{g}, struct{}{}), func() { g.sem.Release(1) }, nil
}

func (g *Gate) wait(ctx context.Context) error {
	waitCtx := ctx
	if g.maxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, g.maxWait)
		defer cancel()
	}
	if err := g.sem.Acquire(waitCtx, 1); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: not released within %s", ErrBusy, g.maxWait)
	}
	return nil
}

// EnterMutating is Enter for state-changing entry points: it additionally
// fails with ErrPaused while the gate is paused.
func (g *Gate) EnterMutating(ctx context.Context) (context.Context, func(), error) {
	ctx, release, err := g.Enter(ctx)
	if err != nil {
		return nil, nil, err
	}
	if g.paused.Load() {
		release()
		return nil, nil, ErrPaused
	}
	return ctx, release, nil
}

// Held reports whether ctx was produced by Enter on this gate.
func (g *Gate) Held(ctx context.Context) bool {
	return ctx.Value(marker{g}) != nil
}

// SetPaused flips the pause switch. Callers hold the gate.
func (g *Gate) SetPaused(paused bool) {
	g.paused.Store(paused)
}

// Paused reports the pause switch.
func (g *Gate) Paused() bool {
	return g.paused.Load()
}
