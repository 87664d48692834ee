package evals

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/kadirpekel/fedqa/pkg/llms"
)

const judgePromptTemplate = `You are a judge that evaluates the relevance of responses given input queries.
For each input query and its corresponding output response, rate the response on a scale of 1 to 5,
where 5 is an excellent response that fully addresses the query, and 1 is a poor response that fails to address the query.

Provide a brief explanation for your rating.
Input: %s
AI Response: %s
Format your response as:
Rating: <1-5>
Explanation: <your explanation here>`

// Verdicts outside the 1..5 rails are rejected, never clamped.
const (
	minRating = 1
	maxRating = 5
)

var (
	ratingPattern      = regexp.MustCompile(`(?m)^\s*Rating:\s*(\d+)\s*$`)
	explanationPattern = regexp.MustCompile(`(?s)Explanation:\s*(.+)`)
)

var judgeTemperature = 0.0

// Judgment is one parsed judge verdict.
type Judgment struct {
	Rating      int
	Explanation string
}

// Judge scores chat responses for relevance with a model.
type Judge struct {
	llm    llms.CompletionService
	logger *slog.Logger
}

// NewJudge creates a relevance judge over the given completion service.
func NewJudge(llm llms.CompletionService, logger *slog.Logger) *Judge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Judge{llm: llm, logger: logger}
}

// Evaluate rates one input/output pair. Verdicts that fail to parse or
// fall outside the rails return an error so the caller can skip them.
func (j *Judge) Evaluate(ctx context.Context, input, output string) (*Judgment, error) {
	prompt := fmt.Sprintf(judgePromptTemplate, input, output)

	completion, err := j.llm.Complete(ctx, llms.CompletionRequest{
		Messages: []llms.Message{
			{Role: llms.RoleUser, Content: prompt},
		},
		Temperature: &judgeTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("judge call failed: %w", err)
	}

	return parseJudgment(completion.Text)
}

// parseJudgment extracts the rating and explanation from the judge's
// formatted reply.
func parseJudgment(raw string) (*Judgment, error) {
	match := ratingPattern.FindStringSubmatch(raw)
	if match == nil {
		return nil, fmt.Errorf("judge output has no rating line: %q", truncate(raw, 100))
	}

	rating, err := strconv.Atoi(match[1])
	if err != nil {
		return nil, fmt.Errorf("judge rating is not a number: %q", match[1])
	}
	if rating < minRating || rating > maxRating {
		return nil, fmt.Errorf("judge rating %d outside rails %d..%d", rating, minRating, maxRating)
	}

	explanation := ""
	if m := explanationPattern.FindStringSubmatch(raw); m != nil {
		explanation = strings.TrimSpace(m[1])
	}

	return &Judgment{Rating: rating, Explanation: explanation}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
