// Package tracestore is a REST client for the Phoenix trace collector.
//
// The evaluation pipeline uses it to fetch the root chain spans produced
// by chat runs and to write judge verdicts back as span annotations.
package tracestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kadirpekel/fedqa/pkg/config"
	"github.com/kadirpekel/fedqa/pkg/httpclient"
	"github.com/kadirpekel/fedqa/pkg/observability"
)

// AnnotationName is the name under which judge verdicts are stored.
const AnnotationName = "relevance"

// AnnotatorKind marks annotations as produced by a model judge.
const AnnotatorKind = "LLM"

// TraceSpan is one root chain span as the collector stores it.
type TraceSpan struct {
	SpanID string // Collector-assigned span identifier
	Input  string // input.value attribute, the user question
	Output string // output.value attribute, the final answer
}

// Annotation is one judge verdict attached to a span.
type Annotation struct {
	SpanID      string
	Label       string
	Score       float64
	Explanation string
}

// Client talks to the Phoenix REST API.
type Client struct {
	baseURL    string
	apiKey     string
	project    string
	httpClient *httpclient.Client
	logger     *slog.Logger
}

// NewClient builds a trace store client from config.
func NewClient(cfg *config.TraceStoreConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		project: cfg.Project,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
			httpclient.WithMaxRetries(3),
		),
		logger: logger,
	}
}

// Project returns the configured project name.
func (c *Client) Project() string {
	return c.project
}

// Wire shapes for GET /v1/projects/{project}/spans.
type spanContext struct {
	SpanID  string `json:"span_id"`
	TraceID string `json:"trace_id"`
}

type wireSpan struct {
	Name       string                 `json:"name"`
	Context    spanContext            `json:"context"`
	ParentID   *string                `json:"parent_id"`
	Attributes map[string]interface{} `json:"attributes"`
}

type spansPage struct {
	Data       []wireSpan `json:"data"`
	NextCursor *string    `json:"next_cursor"`
}

// GetRootSpans fetches root chain spans for the configured project,
// newest last, and returns at most limit of the most recent ones. Spans
// without an input or output attribute are skipped.
func (c *Client) GetRootSpans(ctx context.Context, limit int) ([]TraceSpan, error) {
	var collected []TraceSpan
	cursor := ""

	for {
		page, err := c.fetchSpansPage(ctx, cursor)
		if err != nil {
			return nil, err
		}

		for _, span := range page.Data {
			if span.ParentID != nil && *span.ParentID != "" {
				continue
			}
			if span.Name != observability.SpanRAGAgent {
				continue
			}
			input, _ := span.Attributes[observability.AttrInputValue].(string)
			output, _ := span.Attributes[observability.AttrOutputValue].(string)
			if input == "" || output == "" {
				continue
			}
			collected = append(collected, TraceSpan{
				SpanID: span.Context.SpanID,
				Input:  input,
				Output: output,
			})
		}

		if page.NextCursor == nil || *page.NextCursor == "" {
			break
		}
		cursor = *page.NextCursor
	}

	if limit > 0 && len(collected) > limit {
		collected = collected[len(collected)-limit:]
	}

	c.logger.Debug("Fetched root spans",
		"project", c.project,
		"count", len(collected))

	return collected, nil
}

func (c *Client) fetchSpansPage(ctx context.Context, cursor string) (*spansPage, error) {
	endpoint := fmt.Sprintf("%s/v1/projects/%s/spans", c.baseURL, url.PathEscape(c.project))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, NewTraceStoreError("get_spans", "failed to create request", 0, err)
	}

	query := req.URL.Query()
	query.Set("limit", strconv.Itoa(100))
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	req.URL.RawQuery = query.Encode()
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, NewTraceStoreError("get_spans", "request failed", statusOf(resp), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewTraceStoreError("get_spans", "failed to read response", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, NewTraceStoreError("get_spans", string(body), resp.StatusCode, nil)
	}

	var page spansPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, NewTraceStoreError("get_spans", "failed to decode response", resp.StatusCode, err)
	}

	return &page, nil
}

// Wire shapes for POST /v1/span_annotations.
type annotationResult struct {
	Label       string  `json:"label"`
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation,omitempty"`
}

type wireAnnotation struct {
	SpanID        string           `json:"span_id"`
	Name          string           `json:"name"`
	AnnotatorKind string           `json:"annotator_kind"`
	Result        annotationResult `json:"result"`
}

type annotationsRequest struct {
	Data []wireAnnotation `json:"data"`
}

// AddAnnotations writes judge verdicts back to the collector as span
// annotations named "relevance".
func (c *Client) AddAnnotations(ctx context.Context, annotations []Annotation) error {
	if len(annotations) == 0 {
		return nil
	}

	payload := annotationsRequest{Data: make([]wireAnnotation, 0, len(annotations))}
	for _, a := range annotations {
		payload.Data = append(payload.Data, wireAnnotation{
			SpanID:        a.SpanID,
			Name:          AnnotationName,
			AnnotatorKind: AnnotatorKind,
			Result: annotationResult{
				Label:       a.Label,
				Score:       a.Score,
				Explanation: a.Explanation,
			},
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return NewTraceStoreError("annotate", "failed to marshal annotations", 0, err)
	}

	endpoint := fmt.Sprintf("%s/v1/span_annotations", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return NewTraceStoreError("annotate", "failed to create request", 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return NewTraceStoreError("annotate", "request failed", statusOf(resp), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return NewTraceStoreError("annotate", string(respBody), resp.StatusCode, nil)
	}

	c.logger.Info("Annotated spans", "count", len(annotations))
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
