// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package front accepts connections and hands them to a [back.Back].
package front

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/z5labs/takes/back"
	"github.com/z5labs/takes/internal/otelslog"
	"github.com/z5labs/takes/internal/slogfield"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DefaultPollInterval bounds how long a single accept blocks before the
// exit condition is checked again.
const DefaultPollInterval = time.Second

// AcceptError is returned when the listener fails for good.
type AcceptError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e AcceptError) Error() string {
	return fmt.Sprintf("failed to accept connection: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e AcceptError) Unwrap() error {
	return e.Cause
}

// BackError is returned when the [back.Back] fails with a connection.
type BackError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e BackError) Error() string {
	return fmt.Sprintf("failed to handle connection: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e BackError) Unwrap() error {
	return e.Cause
}

type options struct {
	logHandler   slog.Handler
	pollInterval time.Duration
	exit         Exit
	maxFailures  uint32
}

// Option configures a [Front].
type Option func(*options)

// LogHandler sets the [slog.Handler] used by the [Front].
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = otelslog.NewHandler(h)
	}
}

// PollInterval sets how long a single accept may block.
func PollInterval(d time.Duration) Option {
	return func(o *options) {
		if d <= 0 {
			return
		}
		o.pollInterval = d
	}
}

// WithExit sets when the [Front] stops. The default is [Never].
func WithExit(exit Exit) Option {
	return func(o *options) {
		if exit == nil {
			return
		}
		o.exit = exit
	}
}

// MaxAcceptFailures sets how many consecutive accept failures pause
// accepting for a while.
func MaxAcceptFailures(n uint32) Option {
	return func(o *options) {
		if n == 0 {
			return
		}
		o.maxFailures = n
	}
}

// Front owns a listener and runs the accept loop.
type Front struct {
	log      *slog.Logger
	ln       net.Listener
	back     back.Back
	exit     Exit
	poll     time.Duration
	cb       *gobreaker.CircuitBreaker
	accepted metric.Int64Counter

	closeOnce sync.Once
	closeErr  error
}

// New returns a Front accepting connections from ln and handing them to b.
func New(ln net.Listener, b back.Back, opts ...Option) *Front {
	o := &options{
		logHandler:   otelslog.NewHandler(nil),
		pollInterval: DefaultPollInterval,
		exit:         Never(),
		maxFailures:  5,
	}
	for _, opt := range opts {
		opt(o)
	}

	counter, err := otel.Meter("front").Int64Counter(
		"takes.front.accepted",
		metric.WithDescription("Number of accepted connections."),
	)
	if err != nil {
		counter = metricnoop.Int64Counter{}
	}

	log := slog.New(o.logHandler)
	f := &Front{
		log:      log,
		ln:       ln,
		back:     b,
		exit:     o.exit,
		poll:     o.pollInterval,
		accepted: counter,
	}
	f.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "accept",
		MaxRequests: 1,
		Timeout:     5 * o.pollInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= o.maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isTimeout(err) || errors.Is(err, net.ErrClosed)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn(
				"accept circuit breaker changed state",
				slogfield.String("from", from.String()),
				slogfield.String("to", to.String()),
			)
		},
	})
	return f
}

type stats struct {
	accepted atomic.Int64
}

type statsKey struct{}

// AcceptedCount returns how many connections the [Front] running with
// ctx accepted so far.
func AcceptedCount(ctx context.Context) int64 {
	st, ok := ctx.Value(statsKey{}).(*stats)
	if !ok {
		return 0
	}
	return st.accepted.Load()
}

type deadliner interface {
	SetDeadline(time.Time) error
}

// Run accepts connections until the exit is ready, ctx is done, the
// listener fails or the [back.Back] returns an error. The listener is
// always closed when Run returns.
//
// Connections are handed to the Back on the calling goroutine, so a Back
// which serves them synchronously blocks the loop.
func (f *Front) Run(ctx context.Context) (err error) {
	defer func() {
		cerr := f.closeListener()
		if err == nil && cerr != nil {
			err = AcceptError{Cause: cerr}
		}
	}()

	ctx = context.WithValue(ctx, statsKey{}, &stats{})

	dl, ok := f.ln.(deadliner)
	g, gctx := errgroup.WithContext(ctx)
	loopDone := make(chan struct{})
	if !ok {
		g.Go(func() error {
			f.watch(gctx, loopDone)
			return nil
		})
	}
	g.Go(func() error {
		defer close(loopDone)
		return f.loop(gctx, ctx, dl)
	})
	return g.Wait()
}

// watch closes a listener without deadline support once there is no
// reason to accept anymore, which unblocks a pending accept.
func (f *Front) watch(ctx context.Context, loopDone <-chan struct{}) {
	ticker := time.NewTicker(f.poll)
	defer ticker.Stop()

	for {
		select {
		case <-loopDone:
			return
		case <-ctx.Done():
			f.closeListener()
			return
		case <-ticker.C:
			if f.exit.Ready(ctx) {
				f.closeListener()
				return
			}
		}
	}
}

// loop runs until ctx is done. Connections are served with connCtx, which
// outlives the loop so a [back.Parallel] can finish the ones in flight.
func (f *Front) loop(ctx, connCtx context.Context, dl deadliner) error {
	st := ctx.Value(statsKey{}).(*stats)
	tracer := otel.Tracer("front")

	if dl != nil {
		stop := context.AfterFunc(ctx, func() {
			dl.SetDeadline(time.Now())
		})
		defer stop()
	}

	for !f.exit.Ready(ctx) {
		if ctx.Err() != nil {
			return nil
		}
		if dl != nil {
			dl.SetDeadline(time.Now().Add(f.poll))
		}

		conn, err := f.accept()
		if err != nil {
			done, err := f.acceptFailed(ctx, err)
			if done {
				return err
			}
			continue
		}

		st.accepted.Add(1)
		f.accepted.Add(ctx, 1)

		spanCtx, span := tracer.Start(
			connCtx,
			"Front.accept",
			trace.WithAttributes(attribute.String("net.peer.addr", conn.RemoteAddr().String())),
		)
		err = f.back.Accept(spanCtx, conn)
		span.End()
		if err != nil {
			f.log.ErrorContext(ctx, "stopping after failed connection", slogfield.Conn(conn), slogfield.Error(err))
			return BackError{Cause: err}
		}
	}
	return nil
}

func (f *Front) accept() (net.Conn, error) {
	v, err := f.cb.Execute(func() (interface{}, error) {
		return f.ln.Accept()
	})
	if err != nil {
		return nil, err
	}
	return v.(net.Conn), nil
}

// acceptFailed reports whether the loop has to stop after a failed
// accept and with which error.
func (f *Front) acceptFailed(ctx context.Context, err error) (bool, error) {
	switch {
	case isTimeout(err):
		return false, nil
	case errors.Is(err, net.ErrClosed):
		if ctx.Err() != nil || f.exit.Ready(ctx) {
			return true, nil
		}
		return true, AcceptError{Cause: err}
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		select {
		case <-ctx.Done():
		case <-time.After(f.poll):
		}
		return false, nil
	default:
		f.log.WarnContext(ctx, "failed to accept connection", slogfield.Error(err))
		return false, nil
	}
}

func (f *Front) closeListener() error {
	f.closeOnce.Do(func() {
		f.closeErr = f.ln.Close()
		if errors.Is(f.closeErr, net.ErrClosed) {
			f.closeErr = nil
		}
	})
	return f.closeErr
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
