package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// ExtractContext reads upstream trace headers into ctx.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// InjectContext writes the active span context into carrier.
func InjectContext(ctx context.Context, carrier propagation.TextMapCarrier) {
	if ctx == nil {
		return
	}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
}
