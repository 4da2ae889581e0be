// Package tracing sets up OpenTelemetry tracing. Spans are exported over
// OTLP/HTTP when an endpoint is configured, otherwise the global no-op
// provider is left in place and spans cost next to nothing.
package tracing

import (
	"context"
	"fmt"

	"github.com/golang/glog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer used throughout pantry
const InstrumentationName = "github.com/microcosm-collective/pantry"

// Tracer returns the pantry tracer from the global provider
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// Init installs a global tracer provider exporting to endpoint (host:port).
// The returned function flushes and stops the exporter.
func Init(ctx context.Context, endpoint string, serviceName string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlptracehttp.New(%s) %w", endpoint, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
		)),
	)
	otel.SetTracerProvider(tp)

	if glog.V(2) {
		glog.Infof("Exporting traces to %s", endpoint)
	}

	return tp.Shutdown, nil
}
