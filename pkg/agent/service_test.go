package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/fedqa/pkg/guardrail"
	"github.com/kadirpekel/fedqa/pkg/observability"
)

type mockGuard struct {
	verdict *guardrail.Verdict
	err     error
	calls   int
}

func (g *mockGuard) Classify(ctx context.Context, question string) (*guardrail.Verdict, error) {
	g.calls++
	return g.verdict, g.err
}

type mockRunner struct {
	response *Response
	trace    *RunTrace
	err      error
	calls    int
}

func (r *mockRunner) Run(ctx context.Context, question string) (*Response, *RunTrace, error) {
	r.calls++
	if r.trace == nil {
		r.trace = &RunTrace{FinalState: StateTerminated}
	}
	return r.response, r.trace, r.err
}

func newTestService(t *testing.T, guard Guard, runner Runner) *Service {
	t.Helper()
	tracer, err := observability.NewTracer(context.Background(), observability.TracerConfig{Enabled: false})
	require.NoError(t, err)
	return NewService(guard, runner, tracer, nil)
}

func TestChatRefusesOffTopicQuestion(t *testing.T) {
	guard := &mockGuard{verdict: &guardrail.Verdict{IsEconomyRelated: false, Reasoning: "sports question"}}
	runner := &mockRunner{}

	s := newTestService(t, guard, runner)
	response, err := s.Chat(context.Background(), "Who won the game last night?")
	require.NoError(t, err)

	assert.Equal(t, RefusalMessage, response.Answer)
	assert.Equal(t, []string{}, response.Sources)
	assert.Equal(t, 0, runner.calls, "refused questions must not reach the agent")
}

func TestChatPassesEconomyQuestionThrough(t *testing.T) {
	guard := &mockGuard{verdict: &guardrail.Verdict{IsEconomyRelated: true}}
	runner := &mockRunner{response: &Response{
		Answer:  "Rates held steady.",
		Sources: []string{"FOMC Statement"},
	}}

	s := newTestService(t, guard, runner)
	response, err := s.Chat(context.Background(), "What did the Fed do with rates?")
	require.NoError(t, err)

	assert.Equal(t, "Rates held steady.", response.Answer)
	assert.Equal(t, []string{"FOMC Statement"}, response.Sources)
	assert.Equal(t, 1, guard.calls)
	assert.Equal(t, 1, runner.calls)
}

func TestChatGuardrailFailure(t *testing.T) {
	guard := &mockGuard{err: errors.New("classifier unavailable")}
	runner := &mockRunner{}

	s := newTestService(t, guard, runner)
	response, err := s.Chat(context.Background(), "What about inflation?")
	require.Error(t, err)

	assert.Equal(t, "Error: classifier unavailable", response.Answer)
	assert.Equal(t, []string{}, response.Sources)
	assert.Equal(t, 0, runner.calls)
}

func TestChatAgentFailure(t *testing.T) {
	guard := &mockGuard{verdict: &guardrail.Verdict{IsEconomyRelated: true}}
	runner := &mockRunner{err: errors.New("no final response after 5 iterations")}

	s := newTestService(t, guard, runner)
	response, err := s.Chat(context.Background(), "What about inflation?")
	require.Error(t, err)

	assert.Equal(t, "Error: no final response after 5 iterations", response.Answer)
	assert.Equal(t, []string{}, response.Sources)
}
