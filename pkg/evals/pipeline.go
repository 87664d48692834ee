package evals

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/fedqa/pkg/agent"
	"github.com/kadirpekel/fedqa/pkg/config"
	"github.com/kadirpekel/fedqa/pkg/observability"
	"github.com/kadirpekel/fedqa/pkg/retry"
	"github.com/kadirpekel/fedqa/pkg/tracestore"
)

// ChatService is the chat capability the pipeline replays queries
// against.
type ChatService interface {
	Chat(ctx context.Context, message string) (*agent.Response, error)
}

// SpanStore is the trace store capability: fetching root spans and
// writing annotations back.
type SpanStore interface {
	GetRootSpans(ctx context.Context, limit int) ([]tracestore.TraceSpan, error)
	AddAnnotations(ctx context.Context, annotations []tracestore.Annotation) error
}

// QueryGenerator produces synthetic questions.
type QueryGenerator interface {
	Generate(ctx context.Context, maxQueries int) ([]string, error)
}

// RelevanceJudge scores one input/output pair.
type RelevanceJudge interface {
	Evaluate(ctx context.Context, input, output string) (*Judgment, error)
}

// EvaluationRecord is one judged span.
type EvaluationRecord struct {
	SpanID      string
	Query       string
	Response    string
	Score       int
	Explanation string
}

// Result is the outcome of one pipeline run. Records is empty when the
// trace store was unreachable; Responses is always populated.
type Result struct {
	Responses []string
	Records   []EvaluationRecord
}

// Pipeline runs the synthetic relevance evaluation end to end.
type Pipeline struct {
	generator   QueryGenerator
	chat        ChatService
	store       SpanStore
	judge       RelevanceJudge
	retryer     *retry.Retryer
	concurrency int
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRetryer overrides the span polling retryer.
func WithRetryer(r *retry.Retryer) Option {
	return func(p *Pipeline) {
		p.retryer = r
	}
}

// NewPipeline wires the evaluation pipeline.
func NewPipeline(generator QueryGenerator, chat ChatService, store SpanStore, judge RelevanceJudge, cfg *config.EvalConfig, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	p := &Pipeline{
		generator:   generator,
		chat:        chat,
		store:       store,
		judge:       judge,
		concurrency: concurrency,
		logger:      logger,
		// Span export is asynchronous, so polling backs off until the
		// batch shows up or roughly half a minute has passed
		retryer: retry.New(retry.Config{
			MaxRetries: 5,
			BaseDelay:  time.Second,
			MaxDelay:   30 * time.Second,
		}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the pipeline: generate queries, replay them through the
// chat service, wait for the spans to land in the trace store, judge
// each span, and annotate it with the verdict.
//
// Trace store failures degrade the run instead of failing it: the chat
// responses are still returned, just without evaluation records.
func (p *Pipeline) Run(ctx context.Context, maxQueries int) (*Result, error) {
	queries, err := p.generator.Generate(ctx, maxQueries)
	if err != nil {
		return nil, fmt.Errorf("failed to generate queries: %w", err)
	}

	// Sequential replay keeps span order aligned with query order
	responses := make([]string, 0, len(queries))
	for _, query := range queries {
		response, err := p.chat.Chat(ctx, query)
		if err != nil {
			p.logger.Warn("Chat failed during evaluation", "query", query, "error", err)
		}
		if response == nil {
			response = &agent.Response{Answer: fmt.Sprintf("Error: %v", err)}
		}
		responses = append(responses, response.Answer)
	}

	spans, err := p.awaitSpans(ctx, len(queries))
	if err != nil {
		p.logger.Warn("Could not fetch spans from trace store, returning responses without evaluation",
			"error", err)
		return &Result{Responses: responses}, nil
	}

	records := p.judgeSpans(ctx, spans)

	if err := p.annotate(ctx, records); err != nil {
		p.logger.Warn("Could not annotate spans in trace store", "error", err)
	}

	return &Result{Responses: responses, Records: records}, nil
}

// awaitSpans polls the trace store until at least count root spans are
// visible or the retry budget runs out.
func (p *Pipeline) awaitSpans(ctx context.Context, count int) ([]tracestore.TraceSpan, error) {
	return retry.DoWithResult(ctx, p.retryer, "await_spans", func() ([]tracestore.TraceSpan, error) {
		spans, err := p.store.GetRootSpans(ctx, count)
		if err != nil {
			return nil, err
		}
		if len(spans) < count {
			return nil, fmt.Errorf("only %d of %d spans visible", len(spans), count)
		}
		return spans, nil
	})
}

// judgeSpans fans judging out over a bounded worker group. Records stay
// aligned with span order regardless of completion order; spans whose
// verdict fails to parse are skipped.
func (p *Pipeline) judgeSpans(ctx context.Context, spans []tracestore.TraceSpan) []EvaluationRecord {
	judged := make([]*EvaluationRecord, len(spans))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.concurrency)

	for i, span := range spans {
		group.Go(func() error {
			judgment, err := p.judge.Evaluate(groupCtx, span.Input, span.Output)
			if err != nil {
				observability.GetGlobalMetrics().RecordJudgment(groupCtx, false)
				p.logger.Warn("Skipping span with unusable verdict",
					"span_id", span.SpanID,
					"error", err)
				return nil
			}
			observability.GetGlobalMetrics().RecordJudgment(groupCtx, true)
			judged[i] = &EvaluationRecord{
				SpanID:      span.SpanID,
				Query:       span.Input,
				Response:    span.Output,
				Score:       judgment.Rating,
				Explanation: judgment.Explanation,
			}
			return nil
		})
	}

	// Workers only log failures, the group never returns an error
	_ = group.Wait()

	records := make([]EvaluationRecord, 0, len(spans))
	for _, record := range judged {
		if record != nil {
			records = append(records, *record)
		}
	}
	return records
}

// annotate writes the verdicts back to the trace store.
func (p *Pipeline) annotate(ctx context.Context, records []EvaluationRecord) error {
	if len(records) == 0 {
		return nil
	}
	annotations := make([]tracestore.Annotation, 0, len(records))
	for _, record := range records {
		annotations = append(annotations, tracestore.Annotation{
			SpanID:      record.SpanID,
			Label:       strconv.Itoa(record.Score),
			Score:       float64(record.Score),
			Explanation: record.Explanation,
		})
	}
	return p.store.AddAnnotations(ctx, annotations)
}
