package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/fedqa/pkg/config"
	"github.com/kadirpekel/fedqa/pkg/httpclient"
	"github.com/kadirpekel/fedqa/pkg/observability"
)

// OpenAIProvider talks to the OpenAI chat completions API over HTTP with
// rate-limit aware retries.
type OpenAIProvider struct {
	config     *config.LLMConfig
	httpClient *httpclient.Client
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	MaxTokens      *int                  `json:"max_tokens,omitempty"`
	Temperature    float64               `json:"temperature"`
	Tools          []openAITool          `json:"tools,omitempty"`
	ToolChoice     interface{}           `json:"tool_choice,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
	Error   *openAIError   `json:"error,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIChoice struct {
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

type openAIResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *openAIJSONSchema `json:"json_schema,omitempty"`
}

type openAIJSONSchema struct {
	Name   string                 `json:"name"`
	Schema map[string]interface{} `json:"schema"`
	Strict bool                   `json:"strict,omitempty"`
}

type openAITool struct {
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type openAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIFunctionCall `json:"function"`
}

type openAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// NewOpenAIProviderFromConfig creates a provider from config.
func NewOpenAIProviderFromConfig(cfg *config.LLMConfig) (*OpenAIProvider, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model must not be empty")
	}

	httpClient := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		}),
		httpclient.WithMaxRetries(cfg.MaxRetries),
		httpclient.WithBaseDelay(time.Duration(cfg.RetryDelay)*time.Second),
		httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
	)

	return &OpenAIProvider{
		config:     cfg,
		httpClient: httpClient,
	}, nil
}

// Model returns the configured model name.
func (p *OpenAIProvider) Model() string {
	return p.config.Model
}

// Complete executes one chat completion call.
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	startTime := time.Now()

	tracer := observability.GetTracer("fedqa.llm")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrSpanKind, observability.SpanKindLLM),
			attribute.String(observability.AttrLLMModel, p.config.Model),
			attribute.String("provider", "openai"),
		),
	)
	defer span.End()

	request := p.buildRequest(req)

	response, err := p.makeRequest(ctx, request)
	duration := time.Since(startTime)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.GetGlobalMetrics().RecordLLMCall(ctx, p.config.Model, duration, 0, 0, err)
		return nil, err
	}

	if response.Error != nil {
		apiErr := fmt.Errorf("OpenAI API error: %s", response.Error.Message)
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, response.Error.Message)
		observability.GetGlobalMetrics().RecordLLMCall(ctx, p.config.Model, duration, 0, 0, apiErr)
		return nil, apiErr
	}

	if len(response.Choices) == 0 {
		noChoiceErr := fmt.Errorf("no response choices returned")
		span.RecordError(noChoiceErr)
		span.SetStatus(codes.Error, "no choices")
		observability.GetGlobalMetrics().RecordLLMCall(ctx, p.config.Model, duration, 0, 0, noChoiceErr)
		return nil, noChoiceErr
	}

	choice := response.Choices[0]

	toolCalls, err := parseToolCalls(choice.Message.ToolCalls)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, response.Usage.PromptTokens),
		attribute.Int(observability.AttrLLMTokensOutput, response.Usage.CompletionTokens),
		attribute.Int("llm.tool_calls", len(toolCalls)),
	)
	span.SetStatus(codes.Ok, "success")

	observability.GetGlobalMetrics().RecordLLMCall(ctx, p.config.Model, duration,
		response.Usage.PromptTokens, response.Usage.CompletionTokens, nil)

	return &Completion{
		Text:         choice.Message.Content,
		ToolCalls:    toolCalls,
		FinishReason: choice.FinishReason,
		Usage: Usage{
			PromptTokens:     response.Usage.PromptTokens,
			CompletionTokens: response.Usage.CompletionTokens,
			TotalTokens:      response.Usage.TotalTokens,
		},
	}, nil
}

func (p *OpenAIProvider) buildRequest(req CompletionRequest) openAIRequest {
	messages := make([]openAIMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		openaiMsg := openAIMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}

		if len(msg.ToolCalls) > 0 {
			openaiMsg.ToolCalls = make([]openAIToolCall, len(msg.ToolCalls))
			for j, tc := range msg.ToolCalls {
				argsJSON, _ := json.Marshal(tc.Args)
				openaiMsg.ToolCalls[j] = openAIToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: openAIFunctionCall{
						Name:      tc.Name,
						Arguments: string(argsJSON),
					},
				}
			}
		}

		messages = append(messages, openaiMsg)
	}

	temperature := 0.7
	if req.Temperature != nil {
		temperature = *req.Temperature
	} else if p.config.Temperature != nil {
		temperature = *p.config.Temperature
	}

	request := openAIRequest{
		Model:       p.config.Model,
		Messages:    messages,
		Temperature: temperature,
	}

	maxTokens := p.config.MaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	if maxTokens > 0 {
		request.MaxTokens = &maxTokens
	}

	if len(req.Tools) > 0 {
		request.Tools = convertTools(req.Tools)
		request.ToolChoice = buildToolChoice(req.ToolChoice)
	}

	if req.ResponseSchema != nil {
		request.ResponseFormat = &openAIResponseFormat{
			Type: "json_schema",
			JSONSchema: &openAIJSONSchema{
				Name:   "response",
				Schema: req.ResponseSchema,
				Strict: true,
			},
		}
	}

	return request
}

// buildToolChoice maps a ToolChoice value to the wire format. Plain
// keywords pass through, anything else is a forced function choice.
func buildToolChoice(choice string) interface{} {
	switch choice {
	case "", "auto":
		return "auto"
	case "none", "required":
		return choice
	default:
		return map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name": choice,
			},
		}
	}
}

func convertTools(tools []ToolDefinition) []openAITool {
	result := make([]openAITool, len(tools))
	for i, tool := range tools {
		result[i] = openAITool{
			Type:     "function",
			Function: (openAIToolFunction)(tool),
		}
	}
	return result
}

func parseToolCalls(openaiToolCalls []openAIToolCall) ([]ToolCall, error) {
	if len(openaiToolCalls) == 0 {
		return nil, nil
	}

	result := make([]ToolCall, len(openaiToolCalls))
	for i, tc := range openaiToolCalls {
		var args map[string]interface{}
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
		}

		result[i] = ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		}
	}

	return result, nil
}

// parseErrorResponse extracts error details from API error bodies.
func parseErrorResponse(body []byte) *openAIError {
	if len(body) == 0 {
		return nil
	}
	var errorResp struct {
		Error openAIError `json:"error"`
	}
	if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
		return &errorResp.Error
	}
	return nil
}

func (p *OpenAIProvider) makeRequest(ctx context.Context, request openAIRequest) (*openAIResponse, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Host+"/chat/completions", bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(requestBody)), nil
	}

	req.Header.Set("Content-Type", "application/json")

	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.httpClient.Do(req)
	// The retrying client may return both a response and an error for
	// non-2xx status codes
	if resp != nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, readErr := io.ReadAll(resp.Body)
			errorBody := string(body)
			if readErr != nil {
				errorBody = fmt.Sprintf("(failed to read error body: %v)", readErr)
			}
			if apiErr := parseErrorResponse(body); apiErr != nil {
				return nil, fmt.Errorf("API request failed with status %d: %s (type: %s, code: %s)",
					resp.StatusCode, apiErr.Message, apiErr.Type, apiErr.Code)
			}
			return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, errorBody)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}

	if resp == nil {
		return nil, fmt.Errorf("HTTP request failed: no response received")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response openAIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &response, nil
}
