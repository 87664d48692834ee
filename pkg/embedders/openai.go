// Package embedders turns text into vectors for search and ingest.
package embedders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kadirpekel/fedqa/pkg/config"
	"github.com/kadirpekel/fedqa/pkg/httpclient"
)

// Embedder converts texts into dense vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint. The configured
// dimensions are passed through so the vectors match the collection
// schema.
type OpenAIEmbedder struct {
	config     *config.EmbedderConfig
	httpClient *httpclient.Client
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewOpenAIEmbedderFromConfig creates an embedder from config.
func NewOpenAIEmbedderFromConfig(cfg *config.EmbedderConfig) (*OpenAIEmbedder, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedder model must not be empty")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embedder dimensions must be positive, got %d", cfg.Dimensions)
	}

	httpClient := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		}),
		httpclient.WithMaxRetries(cfg.MaxRetries),
		httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
	)

	return &OpenAIEmbedder{
		config:     cfg,
		httpClient: httpClient,
	}, nil
}

// Dimensions returns the configured vector size.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.config.Dimensions
}

// Embed returns one vector per input text, in input order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	requestBody, err := json.Marshal(embeddingRequest{
		Model:      e.config.Model,
		Input:      texts,
		Dimensions: e.config.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/embeddings", bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(requestBody)), nil
	}

	req.Header.Set("Content-Type", "application/json")
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}

	resp, err := e.httpClient.Do(req)
	if resp != nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("embeddings request failed with status %d: %s", resp.StatusCode, string(body))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("HTTP request failed: no response received")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response embeddingResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if response.Error != nil {
		return nil, fmt.Errorf("embeddings API error: %s", response.Error.Message)
	}

	if len(response.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings count mismatch: got %d, want %d", len(response.Data), len(texts))
	}

	// The API documents index ordering, keep it explicit
	vectors := make([][]float32, len(texts))
	for _, item := range response.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index out of range: %d", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}

	return vectors, nil
}
