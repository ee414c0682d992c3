package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// TraceContext is the W3C trace context of a span in its wire form, for
// storing next to rows that are processed later (outbox events).
type TraceContext struct {
	Traceparent string
	Tracestate  string
}

// CaptureTraceContext serializes the span context carried by ctx using the
// global propagator. It is empty when ctx carries no sampled-or-not span.
func CaptureTraceContext(ctx context.Context) TraceContext {
	c := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, c)
	return TraceContext{Traceparent: c.Get("traceparent"), Tracestate: c.Get("tracestate")}
}

func (tc TraceContext) IsZero() bool {
	return tc.Traceparent == ""
}

// Into returns ctx with tc as the remote parent span context.
func (tc TraceContext) Into(ctx context.Context) context.Context {
	if tc.IsZero() {
		return ctx
	}
	c := propagation.MapCarrier{"traceparent": tc.Traceparent}
	if tc.Tracestate != "" {
		c["tracestate"] = tc.Tracestate
	}
	return otel.GetTextMapPropagator().Extract(ctx, c)
}
