package event

import (
	"context"
	"testing"

	"github.com/pedrosfaria2/email-verifier/internal/pkg/instrument"
	"github.com/pedrosfaria2/email-verifier/internal/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type fixedID string

func (f fixedID) Generate() string { return string(f) }

func TestHeaders_RoundTrip(t *testing.T) {
	_, err := instrument.New(context.Background(), nil)
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx := instrument.SetCorrelationID(context.Background(), "cid-1")
	ctx, span := tp.Tracer("test").Start(ctx, "publish")
	defer span.End()

	headers := OutgoingHeaders(ctx)
	require.NotEmpty(t, headers)
	assert.Equal(t, messaging.Header{Key: HeaderCorrelationID, Value: []byte("cid-1")}, headers[0])

	got := IncomingContext(context.Background(), headers, fixedID("unused"))
	assert.Equal(t, "cid-1", instrument.GetCorrelationID(got))
	assert.Equal(t, span.SpanContext().TraceID(), trace.SpanContextFromContext(got).TraceID())
}

func TestIncomingContext_GeneratesMissingCorrelationID(t *testing.T) {
	got := IncomingContext(context.Background(), []messaging.Header{{Key: HeaderCorrelationID}}, fixedID("generated"))
	assert.Equal(t, "generated", instrument.GetCorrelationID(got))
	assert.False(t, trace.SpanContextFromContext(got).IsValid())
}

func TestOutgoingHeaders_Empty(t *testing.T) {
	assert.Empty(t, OutgoingHeaders(context.Background()))
}
