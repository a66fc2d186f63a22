// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package back

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/z5labs/takes/http1"
	"github.com/z5labs/takes/internal/slogfield"
	"github.com/z5labs/takes/internal/try"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
)

// ErrTimeout is the cause of the context cancellation of an
// interrupted connection.
var ErrTimeout = errors.New("connection handling timed out")

// TimeoutError is returned by [TimeoutBack] for an interrupted connection.
type TimeoutError struct {
	Limit   time.Duration
	Elapsed time.Duration
}

// Error implements the [builtin.error] interface.
func (e TimeoutError) Error() string {
	return fmt.Sprintf("%s: ran for %s with a limit of %s", ErrTimeout, e.Elapsed, e.Limit)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e TimeoutError) Unwrap() error {
	return ErrTimeout
}

type inflight struct {
	started time.Time
	conn    *timeoutConn
	cancel  context.CancelCauseFunc
}

// DefaultRespondTimeout bounds writing the response to an interrupted
// connection when no [WriteTimeout] is set.
const DefaultRespondTimeout = time.Second

// TimeoutBack interrupts connections its inner [Back] takes too long with.
type TimeoutBack struct {
	log            *slog.Logger
	inner          Back
	limit          time.Duration
	check          time.Duration
	respondTimeout time.Duration
	verbose        bool
	interrupted    metric.Int64Counter

	entries  sync.Map
	start    sync.Once
	stop     sync.Once
	done     chan struct{}
	monitors sync.WaitGroup
}

// Timeout returns a [Back] which gives inner at most limit to handle a
// connection.
//
// Every connection in flight is recorded with its start time. A monitor,
// started with the first connection, looks for entries older than limit
// every [CheckInterval]. An expired entry has its context cancelled with
// [ErrTimeout] and its connection deadline expired, which fails any
// pending read or write. Unless inner already started writing a response,
// the client is answered with a 500 and Connection: close. Accept then
// returns a [TimeoutError] and the connection is closed and never reused,
// even if inner keeps running.
func Timeout(inner Back, limit time.Duration, opts ...Option) *TimeoutBack {
	o := newOptions(opts...)

	counter, err := otel.Meter("back").Int64Counter(
		"takes.back.timeouts",
		metric.WithDescription("Number of connections interrupted for taking too long."),
	)
	if err != nil {
		counter = metricnoop.Int64Counter{}
	}

	respondTimeout := o.writeTimeout
	if respondTimeout <= 0 {
		respondTimeout = DefaultRespondTimeout
	}

	return &TimeoutBack{
		log:            slog.New(o.logHandler),
		inner:          inner,
		limit:          limit,
		check:          o.checkInterval,
		respondTimeout: respondTimeout,
		verbose:        o.verbose,
		interrupted:    counter,
		done:           make(chan struct{}),
	}
}

// Accept implements the [Back] interface.
func (tb *TimeoutBack) Accept(ctx context.Context, conn net.Conn) error {
	tb.start.Do(func() {
		tb.monitors.Add(1)
		go tb.monitor()
	})

	tctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	tc := &timeoutConn{Conn: conn}
	e := &inflight{
		started: time.Now(),
		conn:    tc,
		cancel:  cancel,
	}
	tb.entries.Store(e, struct{}{})
	defer tb.entries.Delete(e)

	done := make(chan error, 1)
	go func() {
		done <- acceptSafely(tctx, tb.inner, tc)
	}()

	select {
	case err := <-done:
		// inner may have given up right as it was interrupted.
		if !errors.Is(context.Cause(tctx), ErrTimeout) {
			return err
		}
	case <-tctx.Done():
	}

	// The inner Back may still be running. It's abandoned along with
	// the connection.
	tc.interrupt(time.Now())
	defer tc.Close()

	cause := context.Cause(tctx)
	if !errors.Is(cause, ErrTimeout) {
		return cause
	}

	elapsed := time.Since(e.started)
	terr := TimeoutError{Limit: tb.limit, Elapsed: elapsed}
	tb.interrupted.Add(ctx, 1)
	tb.log.WarnContext(
		ctx,
		"interrupted connection",
		slogfield.Conn(conn),
		slogfield.Duration("limit", tb.limit),
		slogfield.Duration("elapsed", elapsed),
	)

	err := tc.respond(time.Now().Add(tb.respondTimeout), http1.ErrorResponse(terr, tb.verbose))
	if err != nil {
		tb.log.DebugContext(ctx, "failed to answer interrupted connection", slogfield.Error(err))
	}
	return terr
}

func acceptSafely(ctx context.Context, b Back, conn net.Conn) (err error) {
	defer try.Recover(&err)

	return b.Accept(ctx, conn)
}

func (tb *TimeoutBack) monitor() {
	defer tb.monitors.Done()

	ticker := time.NewTicker(tb.check)
	defer ticker.Stop()

	for {
		select {
		case <-tb.done:
			return
		case now := <-ticker.C:
			tb.expire(now)
		}
	}
}

func (tb *TimeoutBack) expire(now time.Time) {
	tb.entries.Range(func(key, _ any) bool {
		e := key.(*inflight)
		if now.Sub(e.started) < tb.limit {
			return true
		}
		tb.entries.Delete(e)
		e.cancel(ErrTimeout)
		e.conn.interrupt(now)
		return true
	})
}

// InFlight returns the number of connections currently tracked.
func (tb *TimeoutBack) InFlight() int {
	n := 0
	tb.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Close stops the monitor. Connections accepted afterwards are never
// interrupted.
func (tb *TimeoutBack) Close() error {
	tb.stop.Do(func() {
		tb.start.Do(func() {})
		close(tb.done)
	})
	tb.monitors.Wait()
	return nil
}

// timeoutConn refuses new deadlines and writes once interrupted, so an
// abandoned handler can't revive the connection. Close is idempotent.
type timeoutConn struct {
	net.Conn

	mu          sync.Mutex
	interrupted bool
	writers     sync.WaitGroup
	written     atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

func (c *timeoutConn) interrupt(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interrupted = true
	c.Conn.SetDeadline(now)
}

func (c *timeoutConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	if c.interrupted {
		c.mu.Unlock()
		return 0, ErrTimeout
	}
	c.writers.Add(1)
	c.mu.Unlock()
	defer c.writers.Done()

	n, err := c.Conn.Write(p)
	c.written.Add(int64(n))
	return n, err
}

// respond writes resp once the writes pending at interruption have
// failed, unless some of a response already went out.
func (c *timeoutConn) respond(deadline time.Time, resp *http1.Response) error {
	c.writers.Wait()
	if c.written.Load() > 0 {
		return nil
	}
	err := c.Conn.SetWriteDeadline(deadline)
	if err != nil {
		return err
	}
	return resp.Write(c.Conn, http1.KeepAlive(false))
}

func (c *timeoutConn) SetDeadline(t time.Time) error {
	return c.setDeadline(t, c.Conn.SetDeadline)
}

func (c *timeoutConn) SetReadDeadline(t time.Time) error {
	return c.setDeadline(t, c.Conn.SetReadDeadline)
}

func (c *timeoutConn) SetWriteDeadline(t time.Time) error {
	return c.setDeadline(t, c.Conn.SetWriteDeadline)
}

func (c *timeoutConn) setDeadline(t time.Time, set func(time.Time) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.interrupted {
		return ErrTimeout
	}
	return set(t)
}

func (c *timeoutConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.Conn.Close()
	})
	return c.closeErr
}
