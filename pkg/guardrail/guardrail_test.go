package guardrail

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/fedqa/pkg/llms"
)

type mockLLM struct {
	response string
	err      error
	lastReq  llms.CompletionRequest
}

func (m *mockLLM) Complete(ctx context.Context, req llms.CompletionRequest) (*llms.Completion, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &llms.Completion{Text: m.response, FinishReason: "stop"}, nil
}

func (m *mockLLM) Model() string { return "mock" }

func TestClassifyInDomain(t *testing.T) {
	llm := &mockLLM{response: `{"is_economy_related": true, "reasoning": "asks about inflation"}`}
	c := NewClassifier(llm, nil)

	verdict, err := c.Classify(context.Background(), "What did the Fed say about inflation?")
	require.NoError(t, err)

	assert.True(t, verdict.IsEconomyRelated)
	assert.Equal(t, "asks about inflation", verdict.Reasoning)
}

func TestClassifyOffTopic(t *testing.T) {
	llm := &mockLLM{response: `{"is_economy_related": false, "reasoning": "cooking question"}`}
	c := NewClassifier(llm, nil)

	verdict, err := c.Classify(context.Background(), "What is the best pasta recipe?")
	require.NoError(t, err)

	assert.False(t, verdict.IsEconomyRelated)
}

func TestClassifyRequestsStructuredOutput(t *testing.T) {
	llm := &mockLLM{response: `{"is_economy_related": true, "reasoning": "ok"}`}
	c := NewClassifier(llm, nil)

	_, err := c.Classify(context.Background(), "How do markets react to rate hikes?")
	require.NoError(t, err)

	require.NotNil(t, llm.lastReq.ResponseSchema)
	require.Len(t, llm.lastReq.Messages, 2)
	assert.Equal(t, llms.RoleSystem, llm.lastReq.Messages[0].Role)
	assert.Contains(t, llm.lastReq.Messages[0].Content, "Stock Market")
	assert.Equal(t, "How do markets react to rate hikes?", llm.lastReq.Messages[1].Content)
}

func TestClassifyLLMError(t *testing.T) {
	llm := &mockLLM{err: errors.New("rate limit")}
	c := NewClassifier(llm, nil)

	_, err := c.Classify(context.Background(), "inflation?")
	require.Error(t, err)

	var classErr *ClassificationError
	assert.ErrorAs(t, err, &classErr)
}

func TestClassifyMalformedVerdict(t *testing.T) {
	llm := &mockLLM{response: `not json at all`}
	c := NewClassifier(llm, nil)

	_, err := c.Classify(context.Background(), "inflation?")
	require.Error(t, err)

	var classErr *ClassificationError
	require.ErrorAs(t, err, &classErr)
	assert.Contains(t, classErr.Message, "decode")
}
