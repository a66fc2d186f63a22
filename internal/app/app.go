// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app assembles a complete server from its [Config].
package app

import (
	"bytes"
	"context"
	_ "embed"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/z5labs/takes"
	"github.com/z5labs/takes/back"
	"github.com/z5labs/takes/config"
	"github.com/z5labs/takes/front"
	"github.com/z5labs/takes/http1"
	"github.com/z5labs/takes/internal/otelslog"
	"github.com/z5labs/takes/internal/slogfield"
	"github.com/z5labs/takes/internal/telemetry"
	"github.com/z5labs/takes/multipart"

	"go.opentelemetry.io/otel"
)

//go:embed default_config.yaml
var defaultConfig []byte

// DefaultConfig returns the [config.Source] every other source is layered on.
func DefaultConfig() config.Source {
	return config.FromYaml(bytes.NewReader(defaultConfig))
}

// Config is the complete server configuration.
type Config struct {
	Server struct {
		Addr              string        `config:"addr"`
		PollInterval      time.Duration `config:"poll_interval"`
		Threads           int           `config:"threads"`
		Timeout           time.Duration `config:"timeout"`
		KeepAlive         bool          `config:"keep_alive"`
		ReadHeaderTimeout time.Duration `config:"read_header_timeout"`
		ReadTimeout       time.Duration `config:"read_timeout"`
		WriteTimeout      time.Duration `config:"write_timeout"`
		IdleTimeout       time.Duration `config:"idle_timeout"`
		MaxHeaderBytes    int           `config:"max_header_bytes"`
		MaxConnections    int64         `config:"max_connections"`
		Verbose           bool          `config:"verbose"`
	} `config:"server"`

	Multipart struct {
		Dir        string `config:"dir"`
		Memory     bool   `config:"memory"`
		BufferSize int    `config:"buffer_size"`
		MaxParts   int    `config:"max_parts"`
	} `config:"multipart"`

	Logging struct {
		Level slog.Level `config:"level"`
	} `config:"logging"`

	OTel telemetry.Config `config:"otel"`
}

// Option configures [Builder].
type Option func(*options)

type options struct {
	logHandler slog.Handler
	ln         net.Listener
	handler    http1.Handler
	traceOut   io.Writer
}

// LogHandler sets the [slog.Handler] shared by every component.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// Listener serves on ln instead of listening on the configured address.
func Listener(ln net.Listener) Option {
	return func(o *options) {
		o.ln = ln
	}
}

// Handler replaces the [Echo] handler.
func Handler(h http1.Handler) Option {
	return func(o *options) {
		o.handler = h
	}
}

// TraceWriter sets where the stdout span exporter writes.
func TraceWriter(w io.Writer) Option {
	return func(o *options) {
		o.traceOut = w
	}
}

// Builder returns a [takes.Builder] for the server described by cfg.
// Everything it starts is stopped by post run hooks, so it must be run
// by a [takes.Runner] such as [takes.DefaultRunner].
func Builder(cfg Config, opts ...Option) takes.Builder[takes.Runtime] {
	o := &options{
		logHandler: otelslog.NewHandler(nil),
	}
	for _, opt := range opts {
		opt(o)
	}

	return takes.BuilderFunc[takes.Runtime](func(ctx context.Context) (takes.Runtime, error) {
		log := slog.New(o.logHandler)

		err := initTracing(ctx, cfg.OTel, o)
		if err != nil {
			return nil, err
		}

		h := o.handler
		if h == nil {
			h = Echo(MultipartOptions(cfg, o.logHandler)...)
		}

		b, closers := Chain(cfg, h, o.logHandler)
		for _, c := range closers {
			c := c
			err := takes.OnPostRun(ctx, takes.HookFunc(func(context.Context) error {
				return c.Close()
			}))
			if err != nil {
				return nil, err
			}
		}

		ln := o.ln
		if ln == nil {
			ln, err = net.Listen("tcp", cfg.Server.Addr)
			if err != nil {
				return nil, err
			}
		}
		log.InfoContext(ctx, "listening", slogfield.Addr("addr", ln.Addr()))

		frontOpts := []front.Option{
			front.LogHandler(o.logHandler),
			front.PollInterval(cfg.Server.PollInterval),
		}
		if cfg.Server.MaxConnections > 0 {
			frontOpts = append(frontOpts, front.WithExit(front.Accepted(cfg.Server.MaxConnections)))
		}
		return front.New(ln, b, frontOpts...), nil
	})
}

func initTracing(ctx context.Context, cfg telemetry.Config, o *options) error {
	var topts []telemetry.Option
	if o.traceOut != nil {
		topts = append(topts, telemetry.Writer(o.traceOut))
	}

	tp, err := telemetry.NewProvider(ctx, cfg, topts...)
	if err != nil {
		return err
	}
	if cfg.Exporter == "" || cfg.Exporter == telemetry.ExporterNone {
		return nil
	}

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	return takes.OnPostRun(ctx, takes.HookFunc(func(ctx context.Context) error {
		defer otel.SetTracerProvider(prev)
		return tp.Shutdown(ctx)
	}))
}

// Chain builds the connection handling chain for cfg:
//
//	Safe(Parallel(Reuse(Timeout(Basic(h)))))
//
// Parallel is left out when threads is not positive, Reuse when keep
// alive is disabled and Timeout when the timeout is not positive. The
// returned closers release the worker pool and the timeout monitor.
func Chain(cfg Config, h http1.Handler, logHandler slog.Handler) (back.Back, []io.Closer) {
	opts := []back.Option{
		back.LogHandler(logHandler),
		back.ReadHeaderTimeout(cfg.Server.ReadHeaderTimeout),
		back.ReadTimeout(cfg.Server.ReadTimeout),
		back.WriteTimeout(cfg.Server.WriteTimeout),
		back.IdleTimeout(cfg.Server.IdleTimeout),
		back.MaxHeaderBytes(cfg.Server.MaxHeaderBytes),
		back.Verbose(cfg.Server.Verbose),
	}

	var closers []io.Closer
	wraps := []back.Wrap{
		func(b back.Back) back.Back {
			return back.Safe(b, opts...)
		},
	}
	if cfg.Server.Threads > 0 {
		wraps = append(wraps, func(b back.Back) back.Back {
			pb := back.Parallel(b, cfg.Server.Threads, opts...)
			closers = append(closers, pb)
			return pb
		})
	}
	if cfg.Server.KeepAlive {
		wraps = append(wraps, func(b back.Back) back.Back {
			return back.Reuse(b, opts...)
		})
	}
	if cfg.Server.Timeout > 0 {
		wraps = append(wraps, func(b back.Back) back.Back {
			tb := back.Timeout(b, cfg.Server.Timeout, opts...)
			closers = append(closers, tb)
			return tb
		})
	}

	b := back.Chain(back.Basic(h, opts...), wraps...)
	return b, closers
}

// MultipartOptions returns the [multipart.Split] options described by cfg.
func MultipartOptions(cfg Config, logHandler slog.Handler) []multipart.Option {
	var store multipart.Store = multipart.FileStore{Dir: cfg.Multipart.Dir}
	if cfg.Multipart.Memory {
		store = multipart.MemoryStore{}
	}
	return []multipart.Option{
		multipart.LogHandler(logHandler),
		multipart.WithStore(store),
		multipart.BufferSize(cfg.Multipart.BufferSize),
		multipart.MaxParts(cfg.Multipart.MaxParts),
	}
}
