package evals

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/fedqa/pkg/agent"
	"github.com/kadirpekel/fedqa/pkg/config"
	"github.com/kadirpekel/fedqa/pkg/retry"
	"github.com/kadirpekel/fedqa/pkg/tracestore"
)

type fakeGenerator struct {
	queries []string
	err     error
}

func (g *fakeGenerator) Generate(ctx context.Context, maxQueries int) ([]string, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.queries[:maxQueries], nil
}

type fakeChat struct {
	mu       sync.Mutex
	messages []string
}

func (c *fakeChat) Chat(ctx context.Context, message string) (*agent.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
	return &agent.Response{Answer: "answer to " + message, Sources: []string{}}, nil
}

type fakeStore struct {
	mu            sync.Mutex
	spans         []tracestore.TraceSpan
	getErr        error
	annotateErr   error
	getCalls      int
	readyAfter    int // GetRootSpans returns short results until this many calls
	annotations   []tracestore.Annotation
	annotateCalls int
}

func (s *fakeStore) GetRootSpans(ctx context.Context, limit int) ([]tracestore.TraceSpan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.getCalls < s.readyAfter {
		return nil, nil
	}
	return s.spans, nil
}

func (s *fakeStore) AddAnnotations(ctx context.Context, annotations []tracestore.Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.annotateCalls++
	if s.annotateErr != nil {
		return s.annotateErr
	}
	s.annotations = append(s.annotations, annotations...)
	return nil
}

type fakeJudge struct {
	mu        sync.Mutex
	ratings   map[string]int // keyed by span input
	failInput string
	calls     int
}

func (j *fakeJudge) Evaluate(ctx context.Context, input, output string) (*Judgment, error) {
	j.mu.Lock()
	j.calls++
	j.mu.Unlock()
	if input == j.failInput {
		return nil, errors.New("judge output has no rating line")
	}
	rating, ok := j.ratings[input]
	if !ok {
		rating = 3
	}
	return &Judgment{Rating: rating, Explanation: "judged " + input}, nil
}

func fastRetryer() *retry.Retryer {
	return retry.New(retry.Config{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	})
}

func newTestPipeline(generator QueryGenerator, chat ChatService, store SpanStore, judge RelevanceJudge) *Pipeline {
	return NewPipeline(generator, chat, store, judge,
		&config.EvalConfig{MaxQueries: 20, Concurrency: 4}, nil,
		WithRetryer(fastRetryer()))
}

func TestPipelineEndToEnd(t *testing.T) {
	generator := &fakeGenerator{queries: []string{"q1", "q2"}}
	chat := &fakeChat{}
	store := &fakeStore{
		spans: []tracestore.TraceSpan{
			{SpanID: "s1", Input: "q1", Output: "answer to q1"},
			{SpanID: "s2", Input: "q2", Output: "answer to q2"},
		},
	}
	judge := &fakeJudge{ratings: map[string]int{"q1": 5, "q2": 2}}

	p := newTestPipeline(generator, chat, store, judge)
	result, err := p.Run(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"q1", "q2"}, chat.messages)
	assert.Equal(t, []string{"answer to q1", "answer to q2"}, result.Responses)

	// Records stay aligned with span order
	require.Len(t, result.Records, 2)
	assert.Equal(t, EvaluationRecord{SpanID: "s1", Query: "q1", Response: "answer to q1", Score: 5, Explanation: "judged q1"}, result.Records[0])
	assert.Equal(t, EvaluationRecord{SpanID: "s2", Query: "q2", Response: "answer to q2", Score: 2, Explanation: "judged q2"}, result.Records[1])

	require.Len(t, store.annotations, 2)
	assert.Equal(t, tracestore.Annotation{SpanID: "s1", Label: "5", Score: 5, Explanation: "judged q1"}, store.annotations[0])
}

func TestPipelinePollsUntilSpansVisible(t *testing.T) {
	generator := &fakeGenerator{queries: []string{"q1"}}
	store := &fakeStore{
		spans:      []tracestore.TraceSpan{{SpanID: "s1", Input: "q1", Output: "answer to q1"}},
		readyAfter: 3,
	}
	judge := &fakeJudge{}

	p := newTestPipeline(generator, &fakeChat{}, store, judge)
	result, err := p.Run(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 3, store.getCalls)
	require.Len(t, result.Records, 1)
}

func TestPipelineDegradesWhenStoreUnreachable(t *testing.T) {
	generator := &fakeGenerator{queries: []string{"q1", "q2"}}
	store := &fakeStore{getErr: errors.New("connection refused")}
	judge := &fakeJudge{}

	p := newTestPipeline(generator, &fakeChat{}, store, judge)
	result, err := p.Run(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"answer to q1", "answer to q2"}, result.Responses)
	assert.Empty(t, result.Records)
	assert.Equal(t, 0, judge.calls)
	assert.Equal(t, 0, store.annotateCalls)
}

func TestPipelineSkipsUnjudgeableSpans(t *testing.T) {
	generator := &fakeGenerator{queries: []string{"q1", "q2"}}
	store := &fakeStore{
		spans: []tracestore.TraceSpan{
			{SpanID: "s1", Input: "q1", Output: "a1"},
			{SpanID: "s2", Input: "q2", Output: "a2"},
		},
	}
	judge := &fakeJudge{ratings: map[string]int{"q2": 4}, failInput: "q1"}

	p := newTestPipeline(generator, &fakeChat{}, store, judge)
	result, err := p.Run(context.Background(), 2)
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, "s2", result.Records[0].SpanID)
	assert.Equal(t, 4, result.Records[0].Score)
}

func TestPipelineAnnotationFailureIsNonFatal(t *testing.T) {
	generator := &fakeGenerator{queries: []string{"q1"}}
	store := &fakeStore{
		spans:       []tracestore.TraceSpan{{SpanID: "s1", Input: "q1", Output: "a1"}},
		annotateErr: errors.New("bad request"),
	}
	judge := &fakeJudge{}

	p := newTestPipeline(generator, &fakeChat{}, store, judge)
	result, err := p.Run(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
}

func TestPipelineGeneratorFailureIsFatal(t *testing.T) {
	generator := &fakeGenerator{err: fmt.Errorf("unavailable")}

	p := newTestPipeline(generator, &fakeChat{}, &fakeStore{}, &fakeJudge{})
	_, err := p.Run(context.Background(), 2)
	require.Error(t, err)
}
