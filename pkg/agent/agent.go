package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kadirpekel/fedqa/pkg/llms"
	"github.com/kadirpekel/fedqa/pkg/tools"
)

// DefaultMaxIterations bounds the reasoning loop. Each iteration is one
// model call plus any tool executions it requests.
const DefaultMaxIterations = 5

const agentInstructions = `Use the provided functions to answer questions about Federal Reserve speeches.
Always cite your sources from the search results.
Don't answer a question in case no results were returned from the search. If that's
the case, just say that you couldn't find any relevant information.

- Don't use markdown.
- Make sure to keep the answer in the "answer" field, and the sources in the "sources" field as a list.`

// Agent runs the bounded tool-calling reasoning loop.
type Agent struct {
	llm            llms.CompletionService
	registry       *tools.Registry
	logger         *slog.Logger
	maxIterations  int
	responseSchema map[string]interface{}
}

// Option configures an Agent.
type Option func(*Agent)

// WithMaxIterations overrides the iteration bound.
func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

// New creates an agent over the given completion service and tool
// registry.
func New(llm llms.CompletionService, registry *tools.Registry, logger *slog.Logger, opts ...Option) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Agent{
		llm:            llm,
		registry:       registry,
		logger:         logger,
		maxIterations:  DefaultMaxIterations,
		responseSchema: tools.MustGenerateSchema[Response](),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes the reasoning loop for one question.
//
// The first model call forces the search tool so every answer is
// grounded in retrieval. Later calls leave tool choice to the model.
// The loop terminates when the model replies without tool calls; that
// reply is decoded as the structured Response. The returned RunTrace is
// always non-nil, including on error.
func (a *Agent) Run(ctx context.Context, question string) (*Response, *RunTrace, error) {
	trace := &RunTrace{FinalState: StateAwaitingModel}

	messages := []llms.Message{
		{Role: llms.RoleSystem, Content: agentInstructions},
		{Role: llms.RoleUser, Content: question},
	}

	definitions := a.registry.Definitions()

	for iteration := 0; iteration < a.maxIterations; iteration++ {
		select {
		case <-ctx.Done():
			trace.FinalState = StateTerminated
			return nil, trace, ctx.Err()
		default:
		}

		trace.Iterations = iteration + 1

		// Force retrieval on the first call only
		toolChoice := "auto"
		if iteration == 0 {
			toolChoice = tools.SearchToolName
		}

		completion, err := a.llm.Complete(ctx, llms.CompletionRequest{
			Messages:       messages,
			Tools:          definitions,
			ToolChoice:     toolChoice,
			ResponseSchema: a.responseSchema,
		})
		if err != nil {
			trace.FinalState = StateTerminated
			return nil, trace, fmt.Errorf("model call failed: %w", err)
		}

		if len(completion.ToolCalls) == 0 {
			trace.FinalState = StateTerminated
			response, err := a.assemble(completion.Text, trace)
			return response, trace, err
		}

		trace.FinalState = StateToolCallPending

		// The assistant message carrying the tool calls must precede
		// the tool result messages in the conversation
		messages = append(messages, llms.Message{
			Role:      llms.RoleAssistant,
			Content:   completion.Text,
			ToolCalls: completion.ToolCalls,
		})

		for _, toolCall := range completion.ToolCalls {
			observation, err := a.executeTool(ctx, toolCall, trace)
			if err != nil {
				trace.FinalState = StateTerminated
				return nil, trace, err
			}
			messages = append(messages, llms.Message{
				Role:       llms.RoleTool,
				Content:    observation,
				ToolCallID: toolCall.ID,
			})
		}

		trace.FinalState = StateAwaitingModel
	}

	trace.FinalState = StateTerminated
	return nil, trace, fmt.Errorf("no final response after %d iterations", a.maxIterations)
}

// executeTool dispatches one tool call through the registry and records
// the invocation.
func (a *Agent) executeTool(ctx context.Context, toolCall llms.ToolCall, trace *RunTrace) (string, error) {
	tool, ok := a.registry.Get(toolCall.Name)
	if !ok {
		return "", fmt.Errorf("model requested unknown tool: %s", toolCall.Name)
	}

	result, err := tool.Execute(ctx, toolCall.Args)
	if err != nil {
		return "", fmt.Errorf("tool %s failed: %w", toolCall.Name, err)
	}

	trace.ToolInvocations = append(trace.ToolInvocations, ToolInvocationRecord{
		Name:      toolCall.Name,
		Arguments: toolCall.Args,
		Result:    result.Content,
	})
	trace.addTitles(result.SourceTitles)

	a.logger.Debug("Tool executed",
		"tool", toolCall.Name,
		"titles", len(result.SourceTitles))

	return result.Content, nil
}

// assemble decodes the final structured output and validates cited
// sources against the passages the run actually retrieved. Sources are
// deduplicated preserving the model's citation order; titles never seen
// by the search tool are dropped.
func (a *Agent) assemble(raw string, trace *RunTrace) (*Response, error) {
	var response Response
	if err := json.Unmarshal([]byte(raw), &response); err != nil {
		return nil, NewMalformedOutputError(raw, err)
	}

	validated := make([]string, 0, len(response.Sources))
	seen := make(map[string]bool, len(response.Sources))
	for _, source := range response.Sources {
		if !trace.seenTitle(source) {
			a.logger.Warn("Dropping cited source not present in search results", "source", source)
			continue
		}
		if seen[source] {
			continue
		}
		seen[source] = true
		validated = append(validated, source)
	}
	response.Sources = validated

	return &response, nil
}
