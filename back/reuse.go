// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package back

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/z5labs/takes/internal/slogfield"
	"github.com/z5labs/takes/internal/try"
)

// session is the state shared by the requests of one connection.
// Requests must be read through br since it may hold bytes of the next
// request already.
type session struct {
	br   *bufio.Reader
	keep bool
}

type sessionKey struct{}

func sessionFromContext(ctx context.Context) (*session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*session)
	return s, ok
}

// ReuseBack keeps connections alive across requests.
type ReuseBack struct {
	log   *slog.Logger
	inner Back
	idle  time.Duration
}

// Reuse returns a [Back] which hands a connection to inner again and
// again for as long as the session stays keep-alive and the next
// request arrives within the idle timeout.
//
// inner gets a view of the connection whose Close does nothing. The
// returned Back closes the connection when the session ends.
func Reuse(inner Back, opts ...Option) *ReuseBack {
	o := newOptions(opts...)
	return &ReuseBack{
		log:   slog.New(o.logHandler),
		inner: inner,
		idle:  o.idleTimeout,
	}
}

// Accept implements the [Back] interface.
func (rb *ReuseBack) Accept(ctx context.Context, conn net.Conn) (err error) {
	defer try.Close(&err, conn)

	s := &session{
		br:   bufio.NewReader(conn),
		keep: true,
	}
	sctx := context.WithValue(ctx, sessionKey{}, s)
	view := reusedConn{Conn: conn}

	for n := 0; ; n++ {
		if n > 0 && !rb.awaitRequest(ctx, conn, s.br) {
			rb.log.DebugContext(ctx, "connection went idle", slogfield.Conn(conn), slogfield.Int("requests", n))
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		err := rb.inner.Accept(sctx, view)
		if err != nil {
			return err
		}
		if !s.keep {
			return nil
		}
	}
}

// awaitRequest reports whether the first byte of another request
// arrived before the idle timeout expired or ctx was done.
func (rb *ReuseBack) awaitRequest(ctx context.Context, conn net.Conn, br *bufio.Reader) bool {
	if br.Buffered() > 0 {
		return true
	}

	var deadline time.Time
	if rb.idle > 0 {
		deadline = time.Now().Add(rb.idle)
	}
	conn.SetReadDeadline(deadline)

	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	_, err := br.Peek(1)
	return err == nil
}

// reusedConn is the view of a connection given to the inner [Back] of
// [Reuse], which owns the real Close.
type reusedConn struct {
	net.Conn
}

func (reusedConn) Close() error {
	return nil
}
