package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestExtractEventMeta(t *testing.T) {
	meta := EventMeta{EventID: "evt-1", EventType: "booking.appointment.booked.v1"}
	msg := kafka.Message{Topic: "t", Key: []byte("k"), Headers: meta.Headers()}
	assert.Equal(t, meta, ExtractEventMeta(msg))

	bare := kafka.Message{Topic: "booking.appointment.cancelled.v1", Key: []byte("evt-2")}
	assert.Equal(t, EventMeta{EventID: "evt-2", EventType: "booking.appointment.cancelled.v1"}, ExtractEventMeta(bare))
}

func TestTraceHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	headers := InjectTraceHeaders(ctx, EventMeta{EventID: "e", EventType: "x"}.Headers())
	require.Len(t, headers, 3)
	assert.NotEmpty(t, HeaderValue(headers, "traceparent"))

	// injecting twice overwrites instead of duplicating
	headers = InjectTraceHeaders(ctx, headers)
	assert.Len(t, headers, 3)

	got := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), kafka.Message{Headers: headers}))
	assert.Equal(t, span.SpanContext().TraceID(), got.TraceID())
	assert.True(t, got.IsRemote())
}

func TestReadyCheckWithoutBrokers(t *testing.T) {
	assert.EqualError(t, ReadyCheck(nil)(context.Background()), "kafka brokers not configured")
}
