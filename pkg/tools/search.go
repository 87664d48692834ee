package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kadirpekel/fedqa/pkg/observability"
	"github.com/kadirpekel/fedqa/pkg/retriever"
)

// SearchToolName is the tool name the reasoning loop forces on its
// first model call.
const SearchToolName = "search"

// Searcher is the retrieval capability the search tool depends on.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]retriever.RetrievedPassage, error)
}

type searchArgs struct {
	Query string `json:"query" jsonschema:"required,description=The search query to find relevant Federal Reserve speech passages"`
}

// SearchTool exposes the knowledge retriever to the model.
type SearchTool struct {
	searcher Searcher
	topK     int
	schema   map[string]interface{}
}

// NewSearchTool wraps a retriever as a model-callable tool.
func NewSearchTool(searcher Searcher, topK int) *SearchTool {
	if topK <= 0 {
		topK = retriever.DefaultTopK
	}
	return &SearchTool{
		searcher: searcher,
		topK:     topK,
		schema:   MustGenerateSchema[searchArgs](),
	}
}

func (t *SearchTool) Name() string {
	return SearchToolName
}

func (t *SearchTool) Description() string {
	return "Search the Federal Reserve speeches knowledge base for passages relevant to the query."
}

func (t *SearchTool) Parameters() map[string]interface{} {
	return t.schema
}

// Execute runs the search and serializes the passages as the
// observation. An empty result set yields the canonical no-results
// message rather than an empty observation.
func (t *SearchTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	startTime := time.Now()

	query, _ := args["query"].(string)
	if query == "" {
		err := fmt.Errorf("search requires a non-empty query argument")
		observability.GetGlobalMetrics().RecordToolCall(ctx, SearchToolName, time.Since(startTime), err)
		return nil, err
	}

	passages, err := t.searcher.Search(ctx, query, t.topK)
	observability.GetGlobalMetrics().RecordToolCall(ctx, SearchToolName, time.Since(startTime), err)
	if err != nil {
		// A failed search becomes an observation so the model can
		// decline gracefully instead of aborting the run
		return &Result{
			Content: fmt.Sprintf("Error searching knowledge base: %v", err),
		}, nil
	}

	if len(passages) == 0 {
		return &Result{
			Content: fmt.Sprintf("No results found for query: '%s'", query),
		}, nil
	}

	observation, err := json.Marshal(passages)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize search results: %w", err)
	}

	titles := make([]string, 0, len(passages))
	for _, p := range passages {
		if p.Title != "" {
			titles = append(titles, p.Title)
		}
	}

	return &Result{
		Content:      string(observation),
		SourceTitles: titles,
	}, nil
}
