// Package evals implements the offline evaluation pipeline: synthetic
// query generation, chat replay, span retrieval from the trace store,
// relevance judging, and annotation write-back.
package evals

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kadirpekel/fedqa/pkg/llms"
)

const generatorInstructions = `Generate a concise and relevant question about Federal Reserve speeches.
IMPORTANT: your job is to generate ONE question only, do not provide answers nor any other comment.`

// Sampling keeps generated queries varied while the short token cap
// keeps them single questions.
var (
	generatorTemperature = 0.7
	generatorMaxTokens   = 50
)

// Generator produces synthetic user questions for evaluation runs.
type Generator struct {
	llm    llms.CompletionService
	logger *slog.Logger
}

// NewGenerator creates a query generator over the given completion
// service.
func NewGenerator(llm llms.CompletionService, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{llm: llm, logger: logger}
}

// Generate produces maxQueries synthetic questions, one model call
// each. A failed call fails the whole batch.
func (g *Generator) Generate(ctx context.Context, maxQueries int) ([]string, error) {
	queries := make([]string, 0, maxQueries)

	for i := 0; i < maxQueries; i++ {
		prompt := fmt.Sprintf("Generate a synthetic query %d related to Federal Reserve speeches.", i+1)

		completion, err := g.llm.Complete(ctx, llms.CompletionRequest{
			Messages: []llms.Message{
				{Role: llms.RoleSystem, Content: generatorInstructions},
				{Role: llms.RoleUser, Content: prompt},
			},
			Temperature: &generatorTemperature,
			MaxTokens:   &generatorMaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("query generation failed at %d/%d: %w", i+1, maxQueries, err)
		}

		query := strings.TrimSpace(completion.Text)
		if query == "" {
			return nil, fmt.Errorf("query generation returned empty text at %d/%d", i+1, maxQueries)
		}
		queries = append(queries, query)
	}

	g.logger.Info("Generated synthetic queries", "count", len(queries))
	return queries, nil
}
