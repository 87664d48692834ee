package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingTracer(t *testing.T) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return &Tracer{tracer: provider.Tracer("test")}, recorder
}

func spanAttribute(span sdktrace.ReadOnlySpan, key string) (string, bool) {
	for _, attr := range span.Attributes() {
		if string(attr.Key) == key {
			return attr.Value.AsString(), true
		}
	}
	return "", false
}

func TestEndChainRecordsOutputOnSuccess(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	_, span := tracer.StartChain(context.Background(), SpanRAGAgent, "what about rates?")
	tracer.EndChain(span, "Rates held steady.", nil)

	ended := recorder.Ended()
	require.Len(t, ended, 1)

	kind, ok := spanAttribute(ended[0], AttrSpanKind)
	require.True(t, ok)
	assert.Equal(t, SpanKindChain, kind)

	input, ok := spanAttribute(ended[0], AttrInputValue)
	require.True(t, ok)
	assert.Equal(t, "what about rates?", input)

	output, ok := spanAttribute(ended[0], AttrOutputValue)
	require.True(t, ok)
	assert.Equal(t, "Rates held steady.", output)
	assert.Equal(t, codes.Ok, ended[0].Status().Code)
}

func TestEndChainRecordsOutputOnError(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	_, span := tracer.StartChain(context.Background(), SpanRAGAgent, "question")
	tracer.EndChain(span, "Error: boom", errors.New("boom"))

	ended := recorder.Ended()
	require.Len(t, ended, 1)

	// Failed runs must still carry their output so span consumers see them
	output, ok := spanAttribute(ended[0], AttrOutputValue)
	require.True(t, ok, "output attribute missing on error path")
	assert.Equal(t, "Error: boom", output)

	assert.Equal(t, codes.Error, ended[0].Status().Code)
	require.Len(t, ended[0].Events(), 1)
	assert.Equal(t, "exception", ended[0].Events()[0].Name)
}

func TestDisabledTracerIsNoop(t *testing.T) {
	tracer, err := NewTracer(context.Background(), TracerConfig{Enabled: false})
	require.NoError(t, err)

	_, span := tracer.StartChain(context.Background(), SpanRAGAgent, "question")
	assert.False(t, span.SpanContext().IsValid())
	tracer.EndChain(span, "answer", nil)
	require.NoError(t, tracer.Shutdown(context.Background()))
}
