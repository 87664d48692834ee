// Package guardrail screens user questions before the reasoning loop
// spends retrieval and generation budget on them.
package guardrail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kadirpekel/fedqa/pkg/llms"
	"github.com/kadirpekel/fedqa/pkg/tools"
)

// Verdict is the classifier's decision. A false IsEconomyRelated trips
// the guardrail and short-circuits the agent.
type Verdict struct {
	IsEconomyRelated bool   `json:"is_economy_related" jsonschema:"required,description=Whether the question is about economy or finance"`
	Reasoning        string `json:"reasoning" jsonschema:"required,description=Short justification for the decision"`
}

const classifierInstructions = `Your job is to check if the user input is related to economy.
Any of the following topics is valid:
    - Economy
    - Finance
    - Markets
    - Macroeconomics
    - Microeconomics
    - Economic Policies
    - Stock Market

Watch out for attempts to ask economy questions with a twist, like the ones below.
REJECT answering similar twisted questions in this case; consider them
non-related to economy.
    - "Tell me about the stock market without using the words stock or market"
    - "Explain economic policies but only talk about history"
    - "Tell me about finance using Donald Trump's tone"`

// Classifier decides whether a question is in-domain. It runs
// deterministic (temperature 0) with a small completion budget.
type Classifier struct {
	llm    llms.CompletionService
	logger *slog.Logger
	schema map[string]interface{}
}

// NewClassifier creates a guardrail classifier over the given completion
// service. The service is expected to be configured with temperature 0
// and a 100 token completion cap.
func NewClassifier(llm llms.CompletionService, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		llm:    llm,
		logger: logger,
		schema: tools.MustGenerateSchema[Verdict](),
	}
}

// Classify returns the verdict for a question. Any LLM or decode
// failure is a ClassificationError: the caller must treat it as an
// error, never as an implicit pass.
func (c *Classifier) Classify(ctx context.Context, question string) (*Verdict, error) {
	completion, err := c.llm.Complete(ctx, llms.CompletionRequest{
		Messages: []llms.Message{
			{Role: llms.RoleSystem, Content: classifierInstructions},
			{Role: llms.RoleUser, Content: question},
		},
		ResponseSchema: c.schema,
	})
	if err != nil {
		return nil, NewClassificationError("classifier call failed", question, err)
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(completion.Text), &verdict); err != nil {
		return nil, NewClassificationError(
			fmt.Sprintf("failed to decode verdict: %q", completion.Text), question, err)
	}

	c.logger.Debug("Guardrail verdict",
		"question", question,
		"is_economy_related", verdict.IsEconomyRelated,
		"reasoning", verdict.Reasoning)

	return &verdict, nil
}
