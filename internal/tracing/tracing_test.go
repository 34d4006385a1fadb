package tracing

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

func TestTraceParentRoundTripThroughKafkaHeaders(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "place")
	defer span.End()

	tpHeader := TraceParent(ctx)
	require.NotEmpty(t, tpHeader)

	headers := InjectKafkaHeaders(ContextFromTraceParent(context.Background(), tpHeader), []kafka.Header{{Key: "event_type", Value: []byte("OrderPlaced")}})
	got := trace.SpanContextFromContext(ExtractKafkaHeaders(context.Background(), headers))

	assert.Equal(t, span.SpanContext().TraceID(), got.TraceID())
	assert.Equal(t, span.SpanContext().SpanID(), got.SpanID())
}

func TestTraceParentWithoutSpan(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	assert.Empty(t, TraceParent(context.Background()))
	assert.Equal(t, context.Background(), ContextFromTraceParent(context.Background(), ""))
}
