package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kadirpekel/fedqa/pkg/guardrail"
	"github.com/kadirpekel/fedqa/pkg/observability"
)

// RefusalMessage is the canonical answer for questions the guardrail
// trips on. Matched byte for byte by clients and evaluations.
const RefusalMessage = "Sorry, I cannot answer that question as it is not related to economy."

// Guard is the input guardrail capability.
type Guard interface {
	Classify(ctx context.Context, question string) (*guardrail.Verdict, error)
}

// Runner is the reasoning loop capability.
type Runner interface {
	Run(ctx context.Context, question string) (*Response, *RunTrace, error)
}

// Service orchestrates one chat turn: guardrail, reasoning loop, and
// the root CHAIN span relayed to the trace collector.
type Service struct {
	guard  Guard
	runner Runner
	tracer *observability.Tracer
	logger *slog.Logger
}

// NewService wires the chat service. The tracer is injected so tests
// and offline tools can pass a disabled one.
func NewService(guard Guard, runner Runner, tracer *observability.Tracer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		guard:  guard,
		runner: runner,
		tracer: tracer,
		logger: logger,
	}
}

// Chat answers one question.
//
// Always returns a non-nil Response: guardrail trips yield the
// canonical refusal, failures yield an "Error: ..." answer alongside
// the error itself. The root span records the question as input.value
// and the final answer as output.value.
func (s *Service) Chat(ctx context.Context, message string) (*Response, error) {
	startTime := time.Now()

	ctx, span := s.tracer.StartChain(ctx, observability.SpanRAGAgent, message)

	verdict, err := s.guard.Classify(ctx, message)
	if err != nil {
		response := errorResponse(err)
		s.tracer.EndChain(span, response.Answer, err)
		observability.GetGlobalMetrics().RecordChat(ctx, time.Since(startTime), false, err)
		s.logger.Error("Guardrail classification failed", "error", err)
		return response, err
	}

	if !verdict.IsEconomyRelated {
		response := &Response{Answer: RefusalMessage, Sources: []string{}}
		s.tracer.EndChain(span, response.Answer, nil)
		observability.GetGlobalMetrics().RecordChat(ctx, time.Since(startTime), true, nil)
		s.logger.Info("Question refused by guardrail",
			"message", message,
			"reasoning", verdict.Reasoning)
		return response, nil
	}

	response, runTrace, err := s.runner.Run(ctx, message)
	if err != nil {
		response = errorResponse(err)
		s.tracer.EndChain(span, response.Answer, err)
		observability.GetGlobalMetrics().RecordChat(ctx, time.Since(startTime), false, err)
		s.logger.Error("Agent run failed", "error", err)
		return response, err
	}

	s.tracer.EndChain(span, response.Answer, nil)
	observability.GetGlobalMetrics().RecordChat(ctx, time.Since(startTime), false, nil)
	s.logger.Debug("Chat completed",
		"iterations", runTrace.Iterations,
		"tool_calls", len(runTrace.ToolInvocations),
		"sources", len(response.Sources))

	return response, nil
}

// errorResponse formats a failure as an answer so clients always get a
// well-formed body.
func errorResponse(err error) *Response {
	return &Response{
		Answer:  fmt.Sprintf("Error: %v", err),
		Sources: []string{},
	}
}
