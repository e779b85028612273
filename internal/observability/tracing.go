package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// NewTracerProvider builds an SDK tracer provider with no network exporter
// configured; spans are sampled and held in-process only unless a deployment
// wires a real exporter via WithBatcher elsewhere.
func NewTracerProvider() *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetTracerProvider(tp)
	return tp
}

// Tracer is the package-wide tracer used to instrument ContextPool.HandleTask.
func Tracer() trace.Tracer {
	return otel.Tracer("github.com/deskmux/deskmux/orchestrator")
}

// StartSpan starts a span named op.
func StartSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, op)
}
