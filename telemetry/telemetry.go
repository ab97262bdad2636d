// Package telemetry builds the OpenTelemetry tracer provider used by the
// dispatcher.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Options configures Setup.
type Options struct {
	// Enabled turns export on. When false Setup returns a no-op provider.
	Enabled bool

	// Endpoint is the OTLP/HTTP collector URL, e.g. http://localhost:4318.
	Endpoint string

	// ServiceName is recorded as the service.name resource attribute.
	ServiceName string
}

// Setup returns a tracer provider and its shutdown function. Tracing is
// opt-in: when disabled or without an endpoint the provider is a no-op. The
// provider is never installed globally; pass it to the components that
// trace.
func Setup(ctx context.Context, optFns ...func(o *Options)) (trace.TracerProvider, func(context.Context) error, error) {
	opts := Options{
		ServiceName: "salesswarm",
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	noopShutdown := func(context.Context) error { return nil }

	if !opts.Enabled || opts.Endpoint == "" {
		return noop.NewTracerProvider(), noopShutdown, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(opts.Endpoint),
	)
	if err != nil {
		return nil, noopShutdown, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(opts.ServiceName),
		),
	)
	if err != nil {
		return nil, noopShutdown, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	return tp, tp.Shutdown, nil
}
