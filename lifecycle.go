// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package takes

import (
	"context"
	"errors"
	"sync"
)

// Hook represents functionality which needs to be performed
// relative to the execution of a [Runtime].
type Hook interface {
	Run(context.Context) error
}

// HookFunc is a func which implements the [Hook] interface.
type HookFunc func(context.Context) error

// Run implements the [Hook] interface.
func (f HookFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Lifecycle collects the [Hook]s registered while a [Runtime] is built.
// The zero value is ready to use.
type Lifecycle struct {
	mu       sync.Mutex
	postRuns []Hook
}

// OnPostRun registers hook to run after the [Runtime] returns.
func (lc *Lifecycle) OnPostRun(hook Hook) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	lc.postRuns = append(lc.postRuns, hook)
}

// PostRun runs every registered hook, most recently registered first,
// even if some fail. Hooks only ever run once.
func (lc *Lifecycle) PostRun(ctx context.Context) error {
	lc.mu.Lock()
	hooks := lc.postRuns
	lc.postRuns = nil
	lc.mu.Unlock()

	// a cancelled ctx must not stop hooks from cleaning up
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		err := hooks[i].Run(ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (lc *Lifecycle) runPostRun(ctx context.Context, err *error) {
	hookErr := lc.PostRun(ctx)

	// errors.Join will not return an error if both
	// *err and hookErr are nil.
	*err = errors.Join(*err, hookErr)
}

// ErrNoLifecycle is returned by [OnPostRun] if the [context.Context]
// doesn't carry a [Lifecycle].
var ErrNoLifecycle = errors.New("no lifecycle found in context")

type lifecycleKey struct{}

// WithLifecycle returns a copy of parent which carries lc.
func WithLifecycle(parent context.Context, lc *Lifecycle) context.Context {
	return context.WithValue(parent, lifecycleKey{}, lc)
}

// LifecycleFromContext returns the [Lifecycle] carried by ctx, if any.
func LifecycleFromContext(ctx context.Context) (*Lifecycle, bool) {
	lc, ok := ctx.Value(lifecycleKey{}).(*Lifecycle)
	return lc, ok
}

// OnPostRun registers hook with the [Lifecycle] carried by ctx.
func OnPostRun(ctx context.Context, hook Hook) error {
	lc, ok := LifecycleFromContext(ctx)
	if !ok {
		return ErrNoLifecycle
	}
	lc.OnPostRun(hook)
	return nil
}
