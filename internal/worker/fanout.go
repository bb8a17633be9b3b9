// Package worker provides the concurrency helpers used to fan node API reads out
// and join them without letting one failure cancel the rest.
package worker

import (
	"context"
	"errors"

	"github.com/alitto/pond/v2"
	"golang.org/x/sync/errgroup"
)

// ErrNotRun is reported for tasks the pool never started (stopped pool or cancelled context)
var ErrNotRun = errors.New("task did not run")

// Outcome is the result of one concurrent task: a value, or the error that replaced it.
// On failure Value holds the caller-provided default, if any.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Failed reports whether the task did not produce its own value
func (o Outcome[T]) Failed() bool {
	return o.Err != nil
}

// ValueOr returns the task value, or def when it failed
func (o Outcome[T]) ValueOr(def T) T {
	if o.Err != nil {
		return def
	}
	return o.Value
}

// NewPool creates a bounded pool for fan-out tasks.
// Tasks submitted to it must not wait on other tasks of the same pool.
func NewPool(workers int) pond.Pool {
	return pond.NewPool(workers)
}

// Map runs fn for each item on pool and waits for all of them.
// Outcomes are index-aligned with items; one failing item never cancels its siblings.
func Map[I, T any](ctx context.Context, pool pond.Pool, items []I, fn func(context.Context, I) (T, error)) []Outcome[T] {
	out := make([]Outcome[T], len(items))
	if len(items) == 0 {
		return out
	}

	ran := make([]bool, len(items))
	group := pool.NewGroupContext(ctx)
	for i, item := range items {
		group.Submit(func() {
			v, err := fn(ctx, item)
			out[i] = Outcome[T]{Value: v, Err: err}
			ran[i] = true
		})
	}

	waitErr := group.Wait()
	for i := range out {
		if ran[i] {
			continue
		}
		switch {
		case waitErr != nil:
			out[i].Err = waitErr
		case ctx.Err() != nil:
			out[i].Err = ctx.Err()
		default:
			out[i].Err = ErrNotRun
		}
	}
	return out
}

// FetchOrDefault runs fn and substitutes def when it fails.
// The returned outcome keeps the error, so a degraded value stays visible to the caller.
func FetchOrDefault[T any](ctx context.Context, def T, fn func(context.Context) (T, error)) Outcome[T] {
	v, err := fn(ctx)
	if err != nil {
		return Outcome[T]{Value: def, Err: err}
	}
	return Outcome[T]{Value: v}
}

// Go starts FetchOrDefault on g and stores the outcome in dst once g is waited on.
// The task itself never fails the group.
func Go[T any](ctx context.Context, g *errgroup.Group, dst *Outcome[T], def T, fn func(context.Context) (T, error)) {
	g.Go(func() error {
		*dst = FetchOrDefault(ctx, def, fn)
		return nil
	})
}

// AnyFailed reports whether any of the given failure flags is set
func AnyFailed(failed ...bool) bool {
	for _, f := range failed {
		if f {
			return true
		}
	}
	return false
}
