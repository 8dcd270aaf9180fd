package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestSetup_NoEndpoint(t *testing.T) {
	p, err := Setup(context.Background(), "inventory", "")
	require.NoError(t, err)
	assert.Nil(t, p.Tracer)
	assert.Nil(t, p.LogProvider())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestInjectExtract_RoundTrip(t *testing.T) {
	_, err := Setup(context.Background(), "inventory", "")
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	headers := Inject(ctx)
	require.Contains(t, headers, "traceparent")

	got := trace.SpanContextFromContext(Extract(context.Background(), headers))
	assert.Equal(t, span.SpanContext().TraceID(), got.TraceID())
	assert.True(t, got.IsRemote())
}
