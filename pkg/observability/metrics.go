package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsConfig configures the prometheus metric exporter.
type MetricsConfig struct {
	Enabled bool
}

// Metrics holds the service instruments. A zero Metrics records nothing.
type Metrics struct {
	chatDuration      metric.Float64Histogram
	chatRequests      metric.Int64Counter
	chatErrors        metric.Int64Counter
	guardrailRefusals metric.Int64Counter
	toolDuration      metric.Float64Histogram
	toolCalls         metric.Int64Counter
	toolErrors        metric.Int64Counter
	llmDuration       metric.Float64Histogram
	llmInputTokens    metric.Int64Counter
	llmOutputTokens   metric.Int64Counter
	llmErrors         metric.Int64Counter
	evalJudgments     metric.Int64Counter
}

var (
	globalMetrics *Metrics
	metricsMu     sync.RWMutex
)

// InitMetrics creates the prometheus exporter and service instruments.
// Metrics are scraped via promhttp on the server's /metrics endpoint.
func InitMetrics(ctx context.Context, cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{}, nil
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)

	meter := meterProvider.Meter("fedqa")

	m := &Metrics{}

	if m.chatDuration, err = meter.Float64Histogram(
		"fedqa_chat_duration_seconds",
		metric.WithDescription("Chat request duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create chat duration histogram: %w", err)
	}

	if m.chatRequests, err = meter.Int64Counter(
		"fedqa_chat_requests_total",
		metric.WithDescription("Total chat requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create chat requests counter: %w", err)
	}

	if m.chatErrors, err = meter.Int64Counter(
		"fedqa_chat_errors_total",
		metric.WithDescription("Total chat request errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create chat errors counter: %w", err)
	}

	if m.guardrailRefusals, err = meter.Int64Counter(
		"fedqa_guardrail_refusals_total",
		metric.WithDescription("Total questions refused by the input guardrail"),
	); err != nil {
		return nil, fmt.Errorf("failed to create guardrail refusals counter: %w", err)
	}

	if m.toolDuration, err = meter.Float64Histogram(
		"fedqa_tool_execution_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool duration histogram: %w", err)
	}

	if m.toolCalls, err = meter.Int64Counter(
		"fedqa_tool_calls_total",
		metric.WithDescription("Total tool calls"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool calls counter: %w", err)
	}

	if m.toolErrors, err = meter.Int64Counter(
		"fedqa_tool_errors_total",
		metric.WithDescription("Total tool errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tool errors counter: %w", err)
	}

	if m.llmDuration, err = meter.Float64Histogram(
		"fedqa_llm_request_duration_seconds",
		metric.WithDescription("LLM request duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm duration histogram: %w", err)
	}

	if m.llmInputTokens, err = meter.Int64Counter(
		"fedqa_llm_tokens_input_total",
		metric.WithDescription("Total input tokens sent to the LLM"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm input tokens counter: %w", err)
	}

	if m.llmOutputTokens, err = meter.Int64Counter(
		"fedqa_llm_tokens_output_total",
		metric.WithDescription("Total output tokens from the LLM"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm output tokens counter: %w", err)
	}

	if m.llmErrors, err = meter.Int64Counter(
		"fedqa_llm_errors_total",
		metric.WithDescription("Total LLM errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm errors counter: %w", err)
	}

	if m.evalJudgments, err = meter.Int64Counter(
		"fedqa_eval_judgments_total",
		metric.WithDescription("Total evaluation judgments by outcome"),
	); err != nil {
		return nil, fmt.Errorf("failed to create eval judgments counter: %w", err)
	}

	return m, nil
}

// SetGlobalMetrics installs the metrics instance used by components that
// cannot receive one by injection.
func SetGlobalMetrics(m *Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics returns the installed metrics, or nil.
func GetGlobalMetrics() *Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}

// RecordChat records a completed chat request.
func (m *Metrics) RecordChat(ctx context.Context, duration time.Duration, refused bool, err error) {
	if m == nil || m.chatRequests == nil {
		return
	}
	m.chatRequests.Add(ctx, 1)
	m.chatDuration.Record(ctx, duration.Seconds())
	if refused {
		m.guardrailRefusals.Add(ctx, 1)
	}
	if err != nil {
		m.chatErrors.Add(ctx, 1)
	}
}

// RecordToolCall records a tool execution.
func (m *Metrics) RecordToolCall(ctx context.Context, name string, duration time.Duration, err error) {
	if m == nil || m.toolCalls == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tool", name))
	m.toolCalls.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		m.toolErrors.Add(ctx, 1, attrs)
	}
}

// RecordLLMCall records an LLM request with token usage.
func (m *Metrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil || m.llmDuration == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("model", model))
	m.llmDuration.Record(ctx, duration.Seconds(), attrs)
	m.llmInputTokens.Add(ctx, int64(inputTokens), attrs)
	m.llmOutputTokens.Add(ctx, int64(outputTokens), attrs)
	if err != nil {
		m.llmErrors.Add(ctx, 1, attrs)
	}
}

// RecordJudgment records an evaluation judgment outcome.
func (m *Metrics) RecordJudgment(ctx context.Context, accepted bool) {
	if m == nil || m.evalJudgments == nil {
		return
	}
	outcome := "accepted"
	if !accepted {
		outcome = "rejected"
	}
	m.evalJudgments.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
