package llms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/fedqa/pkg/config"
)

func testProvider(t *testing.T, handler http.HandlerFunc) (*OpenAIProvider, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewOpenAIProviderFromConfig(&config.LLMConfig{
		Model:      "gpt-4o-mini",
		APIKey:     "sk-test",
		Host:       server.URL,
		MaxTokens:  1000,
		Timeout:    5,
		MaxRetries: 0,
	})
	require.NoError(t, err)
	return provider, server
}

func completionBody(t *testing.T, r *http.Request) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestCompleteText(t *testing.T) {
	provider, _ := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{
					"message":       map[string]interface{}{"role": "assistant", "content": "hello"},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15},
		})
	})

	completion, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "hello", completion.Text)
	assert.Equal(t, "stop", completion.FinishReason)
	assert.Equal(t, 15, completion.Usage.TotalTokens)
	assert.Empty(t, completion.ToolCalls)
}

func TestCompleteForcedToolChoice(t *testing.T) {
	provider, _ := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		body := completionBody(t, r)

		choice, ok := body["tool_choice"].(map[string]interface{})
		require.True(t, ok, "forced tool choice must be an object")
		fn := choice["function"].(map[string]interface{})
		assert.Equal(t, "search", fn["name"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{
					"message": map[string]interface{}{
						"role": "assistant",
						"tool_calls": []map[string]interface{}{
							{
								"id":   "call_1",
								"type": "function",
								"function": map[string]interface{}{
									"name":      "search",
									"arguments": `{"query":"inflation"}`,
								},
							},
						},
					},
					"finish_reason": "tool_calls",
				},
			},
			"usage": map[string]int{"total_tokens": 30},
		})
	})

	completion, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "what about inflation?"}},
		Tools: []ToolDefinition{
			{Name: "search", Description: "search the knowledge base", Parameters: map[string]interface{}{"type": "object"}},
		},
		ToolChoice: "search",
	})
	require.NoError(t, err)

	require.Len(t, completion.ToolCalls, 1)
	assert.Equal(t, "search", completion.ToolCalls[0].Name)
	assert.Equal(t, "inflation", completion.ToolCalls[0].Args["query"])
	assert.Equal(t, "tool_calls", completion.FinishReason)
}

func TestCompleteStructuredOutput(t *testing.T) {
	provider, _ := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		body := completionBody(t, r)

		format, ok := body["response_format"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "json_schema", format["type"])
		schema := format["json_schema"].(map[string]interface{})
		assert.Equal(t, true, schema["strict"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{
					"message":       map[string]interface{}{"role": "assistant", "content": `{"answer":"ok","sources":[]}`},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]int{"total_tokens": 20},
		})
	})

	completion, err := provider.Complete(context.Background(), CompletionRequest{
		Messages:       []Message{{Role: RoleUser, Content: "question"}},
		ResponseSchema: map[string]interface{}{"type": "object"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":"ok","sources":[]}`, completion.Text)
}

func TestCompleteTemperatureOverride(t *testing.T) {
	provider, _ := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		body := completionBody(t, r)
		assert.Equal(t, 0.0, body["temperature"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"role": "assistant", "content": "x"}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"total_tokens": 2},
		})
	})

	_, err := provider.Complete(context.Background(), CompletionRequest{
		Messages:    []Message{{Role: RoleUser, Content: "q"}},
		Temperature: config.FloatPtr(0.0),
	})
	require.NoError(t, err)
}

func TestCompleteAPIError(t *testing.T) {
	provider, _ := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid key","type":"auth","code":"401"}}`))
	})

	_, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "q"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid key")
}

func TestCompleteNoChoices(t *testing.T) {
	provider, _ := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	})

	_, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "q"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no response choices")
}
