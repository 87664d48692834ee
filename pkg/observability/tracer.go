// Package observability wires OpenTelemetry tracing and metrics.
//
// Spans follow the OpenInference conventions so that Phoenix can render
// chain inputs and outputs. The Tracer is a constructed collaborator that
// gets passed to the components emitting spans; a disabled config yields a
// noop tracer so callers never branch on tracing state.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerConfig configures span export.
type TracerConfig struct {
	Enabled      bool
	ExporterType string // "otlp" (default) or "stdout"
	Endpoint     string
	SamplingRate float64
	ServiceName  string
	ProjectName  string
}

// Tracer emits OpenInference spans. Construct with NewTracer and inject
// into components that trace their work.
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// NewTracer builds a Tracer from config. When disabled, the returned
// Tracer is a noop and Shutdown does nothing.
func NewTracer(ctx context.Context, cfg TracerConfig) (*Tracer, error) {
	if !cfg.Enabled {
		return &Tracer{tracer: noop.NewTracerProvider().Tracer("fedqa")}, nil
	}

	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.ExporterType {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithInsecure(),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create span exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			attribute.String(AttrProjectName, cfg.ProjectName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)

	return &Tracer{
		tracer:   tp.Tracer(cfg.ServiceName),
		provider: tp,
	}, nil
}

// StartChain starts a CHAIN span with the given input recorded as
// input.value.
func (t *Tracer) StartChain(ctx context.Context, name, input string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name,
		trace.WithAttributes(
			attribute.String(AttrSpanKind, SpanKindChain),
			attribute.String(AttrInputValue, input),
		),
	)
}

// EndChain records the chain output and status, then ends the span.
// The output attribute is set on failures too, carrying the error
// answer, so the span stays visible to span consumers.
func (t *Tracer) EndChain(span trace.Span, output string, err error) {
	span.SetAttributes(attribute.String(AttrOutputValue, output))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "success")
	}
	span.End()
}

// Shutdown flushes pending spans. Safe to call on a noop tracer.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// GetTracer returns a named tracer from the global provider. Components
// that emit auxiliary spans (LLM requests, tool executions) use this.
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
