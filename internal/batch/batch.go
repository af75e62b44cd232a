// Package batch runs an operation over many independent items and collects
// every outcome. A failing item never stops the others; callers report the
// aggregate at the end.
package batch

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Outcome is the result of applying an operation to one item. Err is set
// when the operation could not run to completion; Value is meaningful only
// when Err is nil.
type Outcome[T, R any] struct {
	Item  T
	Value R
	Err   error
}

// Map applies fn to every item with at most jobs concurrent calls (jobs < 1
// means one at a time) and returns the outcomes in input order. Once ctx is
// done, items not yet started fail with the context error.
func Map[T, R any](ctx context.Context, items []T, jobs int, fn func(context.Context, T) (R, error)) []Outcome[T, R] {
	if jobs < 1 {
		jobs = 1
	}
	outs := make([]Outcome[T, R], len(items))

	var g errgroup.Group
	g.SetLimit(jobs)
	for i, item := range items {
		outs[i].Item = item
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outs[i].Err = err
				return nil
			}
			outs[i].Value, outs[i].Err = fn(ctx, item)
			return nil
		})
	}
	// Workers never return an error; failures live in outs.
	_ = g.Wait()
	return outs
}

// Failure records one item whose operation returned an error.
type Failure[T any] struct {
	Item T
	Err  error
}

func (f Failure[T]) Error() string {
	return fmt.Sprintf("%v: %v", f.Item, f.Err)
}

func (f Failure[T]) Unwrap() error { return f.Err }

// Result partitions the items of a Run into successes and failures, both in
// input order.
type Result[T any] struct {
	Succeeded []T
	Failures  []Failure[T]
}

// OK reports whether every item succeeded.
func (r Result[T]) OK() bool { return len(r.Failures) == 0 }

// Err joins every failure, or returns nil when all items succeeded.
func (r Result[T]) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Run applies fn to every item like Map and partitions the outcomes.
func Run[T any](ctx context.Context, items []T, jobs int, fn func(context.Context, T) error) Result[T] {
	outs := Map(ctx, items, jobs, func(ctx context.Context, item T) (struct{}, error) {
		return struct{}{}, fn(ctx, item)
	})
	return Collect(outs)
}

// Collect partitions outcomes into a Result.
func Collect[T, R any](outs []Outcome[T, R]) Result[T] {
	var r Result[T]
	for _, o := range outs {
		if o.Err != nil {
			r.Failures = append(r.Failures, Failure[T]{Item: o.Item, Err: o.Err})
			continue
		}
		r.Succeeded = append(r.Succeeded, o.Item)
	}
	return r
}
