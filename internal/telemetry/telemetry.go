// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package telemetry configures the OpenTelemetry tracer provider used by the server.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Supported span exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Config selects and configures the span exporter.
type Config struct {
	ServiceName  string `config:"service_name"`
	Exporter     string `config:"exporter"`
	OTLPEndpoint string `config:"otlp_endpoint"`
}

// UnknownExporterError occurs when [Config.Exporter] names an unsupported exporter.
type UnknownExporterError struct {
	Name string
}

// Error implements the [builtin.error] interface.
func (e UnknownExporterError) Error() string {
	return fmt.Sprintf("unknown span exporter: %s", e.Name)
}

// Option configures [NewProvider].
type Option func(*options)

type options struct {
	out io.Writer
}

// Writer sets where the stdout exporter writes spans. Defaults to [os.Stdout].
func Writer(w io.Writer) Option {
	return func(o *options) {
		o.out = w
	}
}

// Provider is a [trace.TracerProvider] which must be shutdown
// to flush any buffered spans.
type Provider struct {
	trace.TracerProvider

	shutdown func(context.Context) error
}

// Shutdown flushes and stops the underlying exporter, if any.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

// NewProvider builds a [Provider] for the configured exporter. The
// "none" exporter, or an empty one, returns the global provider.
func NewProvider(ctx context.Context, cfg Config, opts ...Option) (*Provider, error) {
	o := &options{out: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	var (
		exp sdktrace.SpanExporter
		err error
	)
	switch cfg.Exporter {
	case "", ExporterNone:
		return &Provider{TracerProvider: otel.GetTracerProvider()}, nil
	case ExporterStdout:
		exp, err = stdouttrace.New(stdouttrace.WithWriter(o.out))
	case ExporterOTLP:
		exp, err = otlptracegrpc.New(
			ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
	default:
		return nil, UnknownExporterError{Name: cfg.Exporter}
	}
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	p := &Provider{
		TracerProvider: tp,
		shutdown:       tp.Shutdown,
	}
	return p, nil
}
