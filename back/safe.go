// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package back

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/z5labs/takes/internal/slogfield"
	"github.com/z5labs/takes/internal/try"
)

// SafeBack never fails.
type SafeBack struct {
	log   *slog.Logger
	inner Back
}

// Safe returns a [Back] which logs and swallows every error and panic
// of inner. A connection whose handling panicked is closed.
func Safe(inner Back, opts ...Option) *SafeBack {
	o := newOptions(opts...)
	return &SafeBack{
		log:   slog.New(o.logHandler),
		inner: inner,
	}
}

// Accept implements the [Back] interface. It always returns nil.
func (sb *SafeBack) Accept(ctx context.Context, conn net.Conn) error {
	err := sb.accept(ctx, conn)
	if err == nil {
		return nil
	}

	var perr try.PanicError
	if errors.As(err, &perr) {
		conn.Close()
	}
	sb.log.ErrorContext(ctx, "failed to handle connection", slogfield.Conn(conn), slogfield.Error(err))
	return nil
}

func (sb *SafeBack) accept(ctx context.Context, conn net.Conn) (err error) {
	defer try.Recover(&err)

	return sb.inner.Accept(ctx, conn)
}
