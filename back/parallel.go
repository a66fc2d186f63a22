// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package back

import (
	"context"
	"log/slog"
	"net"

	"github.com/z5labs/takes/internal/fixedpool"
	"github.com/z5labs/takes/internal/slogfield"
)

// ParallelBack serves connections on a fixed number of workers.
type ParallelBack struct {
	log   *slog.Logger
	inner Back
	pool  *fixedpool.Pool
}

// Parallel returns a [Back] which hands every connection to one of n
// workers running inner. Handing off blocks until a worker is free, so
// at most n connections are served at once and none are queued.
//
// Failures of inner are logged by the worker since Accept has returned
// by then.
func Parallel(inner Back, n int, opts ...Option) *ParallelBack {
	o := newOptions(opts...)
	return &ParallelBack{
		log:   slog.New(o.logHandler),
		inner: inner,
		pool:  fixedpool.New(n, fixedpool.LogHandler(o.logHandler)),
	}
}

// Accept implements the [Back] interface.
func (pb *ParallelBack) Accept(ctx context.Context, conn net.Conn) error {
	err := pb.pool.Go(ctx, func(ctx context.Context) error {
		return pb.inner.Accept(ctx, conn)
	})
	if err != nil {
		pb.log.WarnContext(ctx, "dropping connection", slogfield.Conn(conn), slogfield.Error(err))
		conn.Close()
		return err
	}
	return nil
}

// Close waits for the connections being served and stops the workers.
func (pb *ParallelBack) Close() error {
	return pb.pool.Close()
}
