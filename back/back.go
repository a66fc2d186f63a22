// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package back

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/z5labs/takes/http1"
	"github.com/z5labs/takes/internal/otelslog"
)

// Back handles an accepted connection.
//
// An error means the connection failed at the transport level. Protocol
// and handler failures are answered on the connection instead.
type Back interface {
	Accept(context.Context, net.Conn) error
}

// BackFunc is a func which implements the [Back] interface.
type BackFunc func(context.Context, net.Conn) error

// Accept implements the [Back] interface.
func (f BackFunc) Accept(ctx context.Context, conn net.Conn) error {
	return f(ctx, conn)
}

// Wrap decorates a [Back].
type Wrap func(Back) Back

// Chain applies wraps to b. The first wrap is the outermost one, so
//
//	Chain(b, f, g)
//
// is the same as f(g(b)).
func Chain(b Back, wraps ...Wrap) Back {
	for i := len(wraps) - 1; i >= 0; i-- {
		b = wraps[i](b)
	}
	return b
}

const (
	DefaultReadHeaderTimeout = 2 * time.Second
	DefaultReadTimeout       = 5 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultCheckInterval     = 10 * time.Millisecond

	// DefaultDrainLimit is how much of an unread request body is
	// discarded to keep a connection alive.
	DefaultDrainLimit = 256 * 1024
)

type options struct {
	logHandler        slog.Handler
	readHeaderTimeout time.Duration
	readTimeout       time.Duration
	writeTimeout      time.Duration
	idleTimeout       time.Duration
	maxHeaderBytes    int
	drainLimit        int64
	verbose           bool
	checkInterval     time.Duration
}

func newOptions(opts ...Option) *options {
	o := &options{
		logHandler:        otelslog.NewHandler(nil),
		readHeaderTimeout: DefaultReadHeaderTimeout,
		readTimeout:       DefaultReadTimeout,
		writeTimeout:      DefaultWriteTimeout,
		idleTimeout:       DefaultIdleTimeout,
		maxHeaderBytes:    http1.DefaultMaxHeaderBytes,
		drainLimit:        DefaultDrainLimit,
		checkInterval:     DefaultCheckInterval,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures the [Back]s of this package. Every Back only
// reads the options which apply to it.
type Option func(*options)

// LogHandler sets the [slog.Handler] used for logging.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = otelslog.NewHandler(h)
	}
}

// ReadHeaderTimeout bounds reading the request head. Zero disables it.
func ReadHeaderTimeout(d time.Duration) Option {
	return func(o *options) {
		o.readHeaderTimeout = d
	}
}

// ReadTimeout bounds reading the whole request, body included. Zero
// disables it.
func ReadTimeout(d time.Duration) Option {
	return func(o *options) {
		o.readTimeout = d
	}
}

// WriteTimeout bounds writing the response. Zero disables it.
func WriteTimeout(d time.Duration) Option {
	return func(o *options) {
		o.writeTimeout = d
	}
}

// IdleTimeout bounds how long [Reuse] waits for the next request on a
// connection. Zero means waiting until the client closes.
func IdleTimeout(d time.Duration) Option {
	return func(o *options) {
		o.idleTimeout = d
	}
}

// MaxHeaderBytes bounds the size of a request head.
func MaxHeaderBytes(n int) Option {
	return func(o *options) {
		if n <= 0 {
			return
		}
		o.maxHeaderBytes = n
	}
}

// DrainLimit sets how many unread body bytes are discarded to keep a
// connection alive. Bigger leftovers close the connection.
func DrainLimit(n int64) Option {
	return func(o *options) {
		o.drainLimit = n
	}
}

// Verbose makes server error responses include the error and, for
// panics, the stack.
func Verbose(verbose bool) Option {
	return func(o *options) {
		o.verbose = verbose
	}
}

// CheckInterval sets how often [Timeout] looks for expired requests.
func CheckInterval(d time.Duration) Option {
	return func(o *options) {
		if d <= 0 {
			return
		}
		o.checkInterval = d
	}
}

// ReadError is returned when a request could not be read from the
// connection for reasons other than a protocol error.
type ReadError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ReadError) Error() string {
	return fmt.Sprintf("failed to read request: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ReadError) Unwrap() error {
	return e.Cause
}

// WriteError is returned when a response could not be written.
type WriteError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e WriteError) Error() string {
	return fmt.Sprintf("failed to write response: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e WriteError) Unwrap() error {
	return e.Cause
}
