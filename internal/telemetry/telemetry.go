// Package telemetry installs the global OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Exporter names accepted by Setup.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

func Exporters() []string { return []string{ExporterNone, ExporterStdout, ExporterOTLP} }

type Options struct {
	Exporter    string
	ServiceName string
	// Endpoint is host:port of an OTLP/HTTP collector; empty uses the
	// exporter default (localhost:4318).
	Endpoint string
	Insecure bool
	// Out receives spans for the stdout exporter.
	Out io.Writer
}

// ShutdownFunc flushes pending spans.
type ShutdownFunc func(context.Context) error

// Setup builds the exporter named in opts and registers a tracer provider
// with otel. With ExporterNone the global no-op provider is left in place.
func Setup(ctx context.Context, opts Options) (ShutdownFunc, error) {
	var (
		exp sdktrace.SpanExporter
		err error
	)
	switch opts.Exporter {
	case ExporterNone, "":
		return func(context.Context) error { return nil }, nil
	case ExporterStdout:
		out := opts.Out
		if out == nil {
			out = os.Stdout
		}
		exp, err = stdouttrace.New(stdouttrace.WithWriter(out))
	case ExporterOTLP:
		var hopts []otlptracehttp.Option
		if opts.Endpoint != "" {
			hopts = append(hopts, otlptracehttp.WithEndpoint(opts.Endpoint))
		}
		if opts.Insecure {
			hopts = append(hopts, otlptracehttp.WithInsecure())
		}
		exp, err = otlptracehttp.New(ctx, hopts...)
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", opts.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", opts.Exporter, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", opts.ServiceName),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}
