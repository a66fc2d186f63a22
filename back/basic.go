// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package back

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/z5labs/takes/http1"
	"github.com/z5labs/takes/internal/slogfield"
	"github.com/z5labs/takes/internal/try"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var errNilResponse = errors.New("handler returned neither a response nor an error")

// BasicBack serves one request per connection it's given.
type BasicBack struct {
	log  *slog.Logger
	h    http1.Handler
	opts *options
}

// Basic returns a [Back] which reads one request from a connection,
// hands it to h and writes the response back.
//
// Protocol errors are answered with their 4xx status, failed or
// panicking handlers with a 5xx, and the connection is closed
// afterwards unless it runs under [Reuse] and stays keep-alive.
func Basic(h http1.Handler, opts ...Option) *BasicBack {
	o := newOptions(opts...)
	return &BasicBack{
		log:  slog.New(o.logHandler),
		h:    h,
		opts: o,
	}
}

// Accept implements the [Back] interface.
func (b *BasicBack) Accept(ctx context.Context, conn net.Conn) error {
	spanCtx, span := otel.Tracer("back").Start(ctx, "BasicBack.Accept")
	defer span.End()
	defer conn.Close()

	s, ok := sessionFromContext(ctx)
	if !ok {
		s = &session{br: bufio.NewReader(conn)}
	}

	start := time.Now()
	setReadDeadline(conn, start, headTimeout(b.opts))
	req, err := http1.ReadRequest(
		s.br,
		http1.MaxHeaderBytes(b.opts.maxHeaderBytes),
		http1.Introspect(conn.LocalAddr(), conn.RemoteAddr()),
	)
	if err != nil {
		s.keep = false
		return b.reject(spanCtx, conn, err)
	}
	defer req.Close()

	span.SetAttributes(
		attribute.String("http.method", req.Line.Method),
		attribute.String("http.target", req.Line.Target),
	)
	setReadDeadline(conn, start, b.opts.readTimeout)

	resp := b.handle(spanCtx, req)
	if err := ctx.Err(); err != nil {
		s.keep = false
		try.Close(&err, resp.Body)
		return err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.Status))

	keep := s.keep && req.KeepAlive() && !resp.Header.HasToken("Connection", "close")
	if keep {
		err := req.Discard(b.opts.drainLimit)
		if err != nil {
			b.log.DebugContext(spanCtx, "closing connection with unread request body", slogfield.Error(err))
			keep = false
		}
	}
	s.keep = keep

	wopts := []http1.WriteOption{http1.KeepAlive(keep)}
	if req.Line.Method == http.MethodHead {
		wopts = append(wopts, http1.OmitBody())
	}
	if b.opts.writeTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(b.opts.writeTimeout))
	}
	err = resp.Write(conn, wopts...)
	if err != nil {
		s.keep = false
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return WriteError{Cause: err}
	}

	b.log.DebugContext(
		spanCtx,
		"served request",
		slogfield.String("method", req.Line.Method),
		slogfield.String("target", req.Line.Target),
		slogfield.Int("status", resp.Status),
		slogfield.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// reject answers a request which could not be read. Only transport
// failures are returned.
func (b *BasicBack) reject(ctx context.Context, conn net.Conn, err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	if http1.StatusCode(err, 0) == 0 {
		if !errors.Is(err, os.ErrDeadlineExceeded) {
			return ReadError{Cause: err}
		}
		err = http1.StatusError{Code: http.StatusRequestTimeout, Cause: err}
	}

	b.log.WarnContext(
		ctx,
		"rejected malformed request",
		slogfield.Conn(conn),
		slogfield.Int("status", http1.StatusCode(err, 0)),
		slogfield.Error(err),
	)

	if b.opts.writeTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(b.opts.writeTimeout))
	}
	werr := http1.ErrorResponse(err, b.opts.verbose).Write(conn, http1.KeepAlive(false))
	if werr != nil {
		return WriteError{Cause: werr}
	}
	return nil
}

func (b *BasicBack) handle(ctx context.Context, req *http1.Request) *http1.Response {
	resp, err := b.serve(ctx, req)
	if err == nil && resp == nil {
		err = errNilResponse
	}
	if err == nil {
		return resp
	}
	if resp != nil {
		try.Close(&err, resp.Body)
	}

	if http1.StatusCode(err, 0) == 0 && isDeadline(err) {
		err = http1.StatusError{Code: http.StatusRequestTimeout, Cause: err}
	}
	b.log.ErrorContext(
		ctx,
		"failed to handle request",
		slogfield.String("method", req.Line.Method),
		slogfield.String("target", req.Line.Target),
		slogfield.Error(err),
	)
	return http1.ErrorResponse(err, b.opts.verbose)
}

func (b *BasicBack) serve(ctx context.Context, req *http1.Request) (_ *http1.Response, err error) {
	defer try.Recover(&err)

	return b.h.Handle(ctx, req)
}

func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded)
}

func headTimeout(o *options) time.Duration {
	switch {
	case o.readHeaderTimeout <= 0:
		return o.readTimeout
	case o.readTimeout <= 0:
		return o.readHeaderTimeout
	default:
		return min(o.readHeaderTimeout, o.readTimeout)
	}
}

func setReadDeadline(conn net.Conn, start time.Time, d time.Duration) {
	if d <= 0 {
		conn.SetReadDeadline(time.Time{})
		return
	}
	conn.SetReadDeadline(start.Add(d))
}
