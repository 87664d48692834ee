package ingest

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts and splits text by tokenizer tokens.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

var (
	// Encodings are expensive to initialize, cache per model
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// NewTokenCounter creates a counter for the given model, falling back
// to cl100k_base for models tiktoken does not know.
func NewTokenCounter(model string) (*TokenCounter, error) {
	cacheMu.RLock()
	cached, exists := encodingCache[model]
	cacheMu.RUnlock()

	if exists {
		return &TokenCounter{encoding: cached, model: model}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[model] = encoding
	cacheMu.Unlock()

	return &TokenCounter{encoding: encoding, model: model}, nil
}

// Count returns the token count for text.
func (tc *TokenCounter) Count(text string) int {
	return len(tc.encoding.Encode(text, nil, nil))
}

// SplitByTokens hard-splits text into pieces of at most maxTokens
// tokens each.
func (tc *TokenCounter) SplitByTokens(text string, maxTokens int) []string {
	tokens := tc.encoding.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return []string{text}
	}

	var pieces []string
	for start := 0; start < len(tokens); start += maxTokens {
		end := start + maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		pieces = append(pieces, tc.encoding.Decode(tokens[start:end]))
	}
	return pieces
}
