// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package front

import (
	"context"
	"sync"
	"time"
)

// Exit decides when a [Front] stops accepting connections. It's checked
// before every accept and, for listeners without deadlines, from another
// goroutine as well, so implementations must be safe for concurrent use.
type Exit interface {
	Ready(context.Context) bool
}

// ExitFunc is a func which implements the [Exit] interface.
type ExitFunc func(context.Context) bool

// Ready implements the [Exit] interface.
func (f ExitFunc) Ready(ctx context.Context) bool {
	return f(ctx)
}

// Never is never ready. A [Front] with it only stops once its context
// is done.
func Never() Exit {
	return ExitFunc(func(context.Context) bool {
		return false
	})
}

// Done is ready once the context is done.
func Done() Exit {
	return ExitFunc(func(ctx context.Context) bool {
		return ctx.Err() != nil
	})
}

// AfterExit is ready once a duration passed since it was first checked.
type AfterExit struct {
	d     time.Duration
	once  sync.Once
	start time.Time
}

// After returns an [Exit] which is ready d after its first check.
func After(d time.Duration) *AfterExit {
	return &AfterExit{d: d}
}

// Ready implements the [Exit] interface.
func (e *AfterExit) Ready(context.Context) bool {
	e.once.Do(func() {
		e.start = time.Now()
	})
	return time.Since(e.start) >= e.d
}

// Accepted returns an [Exit] which is ready once the [Front] checking it
// accepted n connections.
func Accepted(n int64) Exit {
	return ExitFunc(func(ctx context.Context) bool {
		return AcceptedCount(ctx) >= n
	})
}

// Switch is an [Exit] toggled by hand. The zero value is not ready.
type Switch struct {
	mu    sync.Mutex
	ready bool
}

// Toggle flips the switch.
func (s *Switch) Toggle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = !s.ready
}

// Set turns the switch on or off.
func (s *Switch) Set(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// Ready implements the [Exit] interface.
func (s *Switch) Ready(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// AndExit is ready when all of its exits are.
type AndExit struct {
	exits []Exit
}

// And returns an [Exit] which is ready when all exits are.
func And(exits ...Exit) AndExit {
	return AndExit{
		exits: exits,
	}
}

// Ready implements the [Exit] interface.
func (e AndExit) Ready(ctx context.Context) bool {
	for _, exit := range e.exits {
		if !exit.Ready(ctx) {
			return false
		}
	}
	return true
}

// OrExit is ready when any of its exits is.
type OrExit struct {
	exits []Exit
}

// Or returns an [Exit] which is ready when any of exits is.
func Or(exits ...Exit) OrExit {
	return OrExit{
		exits: exits,
	}
}

// Ready implements the [Exit] interface.
func (e OrExit) Ready(ctx context.Context) bool {
	for _, exit := range e.exits {
		if exit.Ready(ctx) {
			return true
		}
	}
	return false
}

// NotExit inverts an [Exit].
type NotExit struct {
	exit Exit
}

// Not returns an [Exit] which is ready when exit isn't.
func Not(exit Exit) NotExit {
	return NotExit{
		exit: exit,
	}
}

// Ready implements the [Exit] interface.
func (e NotExit) Ready(ctx context.Context) bool {
	return !e.exit.Ready(ctx)
}
