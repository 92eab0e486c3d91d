// Package tracing installs the OpenTelemetry tracer provider used by the
// HTTP middleware, the scoring pipeline and the event bus.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Setup installs a global tracer provider when tracing is enabled and
// returns its shutdown function. Spans are sampled but not exported; their
// ids flow into X-Trace-ID headers, logs and event metadata. When tracing
// is disabled the no-op provider stays in place.
func Setup(cfg domain.TracingConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	name := cfg.ServiceName
	if name == "" {
		name = "kestrel"
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(sdkresource.NewSchemaless(
			attribute.String("service.name", name),
		)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}
