// Package llms provides chat completion access for the agent, guardrail,
// and evaluation components.
package llms

import "context"

// Message roles on the chat completions API.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single chat message.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]interface{}
}

// ToolDefinition describes a callable tool to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// CompletionRequest is a single chat completion call.
//
// Temperature and MaxTokens override the provider defaults when set.
// ToolChoice may be "auto", "none", "required", or a tool name to force
// that specific tool. A non-nil ResponseSchema requests strict
// JSON-schema structured output.
type CompletionRequest struct {
	Messages       []Message
	Tools          []ToolDefinition
	ToolChoice     string
	Temperature    *float64
	MaxTokens      *int
	ResponseSchema map[string]interface{}
}

// Usage reports token consumption for one request.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is the model's reply.
type Completion struct {
	Text         string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        Usage
}

// CompletionService is the capability consumed by agent, guardrail, and
// evals. Satisfied by OpenAIProvider and by test mocks.
type CompletionService interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	Model() string
}
