// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package takes

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/z5labs/takes/internal/try"
)

// Builder represents anything which can construct a T.
type Builder[T any] interface {
	Build(context.Context) (T, error)
}

// BuilderFunc is a func which implements the [Builder] interface.
type BuilderFunc[T any] func(context.Context) (T, error)

// Build implements the [Builder] interface.
func (f BuilderFunc[T]) Build(ctx context.Context) (T, error) {
	return f(ctx)
}

// Map returns a [Builder] which transforms the output of b with f.
// f is not called if b fails.
func Map[A, B any](b Builder[A], f func(A) (B, error)) Builder[B] {
	return BuilderFunc[B](func(ctx context.Context) (B, error) {
		var zero B
		a, err := b.Build(ctx)
		if err != nil {
			return zero, err
		}
		v, err := f(a)
		if err != nil {
			return zero, err
		}
		return v, nil
	})
}

// Bind returns a [Builder] which uses the output of b to select the
// [Builder] that constructs the final value.
func Bind[A, B any](b Builder[A], f func(A) Builder[B]) Builder[B] {
	return BuilderFunc[B](func(ctx context.Context) (B, error) {
		var zero B
		a, err := b.Build(ctx)
		if err != nil {
			return zero, err
		}
		v, err := f(a).Build(ctx)
		if err != nil {
			return zero, err
		}
		return v, nil
	})
}

// Runtime represents a long running component, e.g. a [front.Front].
type Runtime interface {
	Run(context.Context) error
}

// RuntimeFunc is a func which implements the [Runtime] interface.
type RuntimeFunc func(context.Context) error

// Run implements the [Runtime] interface.
func (f RuntimeFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Runner builds and runs a [Runtime].
type Runner[T Runtime] interface {
	Run(context.Context, Builder[T]) error
}

// RunnerFunc is a func which implements the [Runner] interface.
type RunnerFunc[T Runtime] func(context.Context, Builder[T]) error

// Run implements the [Runner] interface.
func (f RunnerFunc[T]) Run(ctx context.Context, b Builder[T]) error {
	return f(ctx, b)
}

// BuildError occurs when a [Builder] fails to construct the [Runtime].
type BuildError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e BuildError) Error() string {
	return fmt.Sprintf("failed to build runtime: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e BuildError) Unwrap() error {
	return e.Cause
}

// RunError occurs when a [Runtime] returns an error.
type RunError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e RunError) Error() string {
	return fmt.Sprintf("failed to run runtime: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e RunError) Unwrap() error {
	return e.Cause
}

// DefaultRunner returns a [Runner] which builds the [Runtime] and then runs it.
// Hooks registered with [OnPostRun], during either step, are always run
// before it returns and their failures are joined with the returned error.
func DefaultRunner[T Runtime]() Runner[T] {
	return RunnerFunc[T](func(ctx context.Context, b Builder[T]) (err error) {
		lc := &Lifecycle{}
		ctx = WithLifecycle(ctx, lc)
		defer lc.runPostRun(ctx, &err)

		rt, err := b.Build(ctx)
		if err != nil {
			return BuildError{Cause: err}
		}

		err = rt.Run(ctx)
		if err != nil {
			return RunError{Cause: err}
		}
		return nil
	})
}

// RecoverPanics wraps r so that a panic while building or running is
// returned as an error, i.e. a [try.PanicError].
func RecoverPanics[T Runtime](r Runner[T]) Runner[T] {
	return RunnerFunc[T](func(ctx context.Context, b Builder[T]) (err error) {
		defer try.Recover(&err)

		return r.Run(ctx, b)
	})
}

// NotifyOnSignal wraps r so that the [context.Context] passed to it is
// cancelled once any of the given signals is received. Without any
// signals r is returned as is.
func NotifyOnSignal[T Runtime](r Runner[T], signals ...os.Signal) Runner[T] {
	if len(signals) == 0 {
		return r
	}
	return RunnerFunc[T](func(ctx context.Context, b Builder[T]) error {
		sigCtx, cancel := signal.NotifyContext(ctx, signals...)
		defer cancel()

		return r.Run(sigCtx, b)
	})
}
