// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package fixedpool provides a pool with a fixed number of workers.
package fixedpool

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/z5labs/takes/internal/otelslog"
	"github.com/z5labs/takes/internal/slogfield"
	"github.com/z5labs/takes/internal/try"
)

// ErrClosed is returned by [Pool.Go] once the pool is closed.
var ErrClosed = errors.New("pool is closed")

// Task is a unit of work run by a worker.
type Task func(context.Context) error

type job struct {
	ctx  context.Context
	task Task
}

type options struct {
	logHandler slog.Handler
}

// Option configures a [Pool].
type Option func(*options)

// LogHandler sets the handler task failures are logged with.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = otelslog.NewHandler(h)
	}
}

// Pool runs tasks on a fixed number of workers. Tasks are handed over
// synchronously so there is no queue: [Pool.Go] blocks until a worker
// is free.
type Pool struct {
	log   *slog.Logger
	jobs  chan job
	done  chan struct{}
	close sync.Once
	wg    sync.WaitGroup
}

// New starts a Pool with n workers. n less than one means one worker.
func New(n int, opts ...Option) *Pool {
	o := &options{
		logHandler: otelslog.NewHandler(nil),
	}
	for _, opt := range opts {
		opt(o)
	}
	if n < 1 {
		n = 1
	}

	p := &Pool{
		log:  slog.New(o.logHandler),
		jobs: make(chan job),
		done: make(chan struct{}),
	}
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.work()
	}
	return p
}

func (p *Pool) work() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case j := <-p.jobs:
			err := run(j)
			if err != nil {
				p.log.ErrorContext(j.ctx, "task failed", slogfield.Error(err))
			}
		}
	}
}

func run(j job) (err error) {
	defer try.Recover(&err)

	return j.task(j.ctx)
}

// Go hands t to a free worker, blocking until one takes it, ctx is
// done or the pool is closed. The task is run with ctx.
func (p *Pool) Go(ctx context.Context, t Task) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}

	select {
	case p.jobs <- job{ctx: ctx, task: t}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrClosed
	}
}

// Close stops accepting tasks and waits for the running ones to return.
func (p *Pool) Close() error {
	p.close.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
	return nil
}
