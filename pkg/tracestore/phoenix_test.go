package tracestore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/fedqa/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(&config.TraceStoreConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Project: "fast_api_agent",
		Timeout: 5,
	}, nil)
}

func spanJSON(spanID, name, parentID, input, output string) map[string]interface{} {
	span := map[string]interface{}{
		"name":    name,
		"context": map[string]interface{}{"span_id": spanID, "trace_id": "t-" + spanID},
		"attributes": map[string]interface{}{
			"input.value":  input,
			"output.value": output,
		},
	}
	if parentID != "" {
		span["parent_id"] = parentID
	}
	return span
}

func TestGetRootSpansFiltersAndLimits(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/projects/fast_api_agent/spans", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []interface{}{
				spanJSON("s1", "rag_agent", "", "q1", "a1"),
				spanJSON("s2", "llm_request", "s1", "x", "y"),
				spanJSON("s3", "rag_agent", "s1", "nested", "nested"),
				spanJSON("s4", "rag_agent", "", "q2", "a2"),
				spanJSON("s5", "rag_agent", "", "q3", "a3"),
			},
		})
	})

	spans, err := client.GetRootSpans(context.Background(), 2)
	require.NoError(t, err)

	// Child spans and non-chain spans are dropped; only the last 2 remain
	require.Len(t, spans, 2)
	assert.Equal(t, "s4", spans[0].SpanID)
	assert.Equal(t, "q2", spans[0].Input)
	assert.Equal(t, "a2", spans[0].Output)
	assert.Equal(t, "s5", spans[1].SpanID)
}

func TestGetRootSpansFollowsCursor(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("cursor") == "" {
			next := "page2"
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data":        []interface{}{spanJSON("s1", "rag_agent", "", "q1", "a1")},
				"next_cursor": next,
			})
			return
		}
		assert.Equal(t, "page2", r.URL.Query().Get("cursor"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []interface{}{spanJSON("s2", "rag_agent", "", "q2", "a2")},
		})
	})

	spans, err := client.GetRootSpans(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, spans, 2)
	assert.Equal(t, "s1", spans[0].SpanID)
	assert.Equal(t, "s2", spans[1].SpanID)
}

func TestGetRootSpansSkipsSpansWithoutIO(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []interface{}{
				spanJSON("s1", "rag_agent", "", "q1", ""),
				spanJSON("s2", "rag_agent", "", "q2", "a2"),
			},
		})
	})

	spans, err := client.GetRootSpans(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, "s2", spans[0].SpanID)
}

func TestGetRootSpansHTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "project not found", http.StatusNotFound)
	})

	_, err := client.GetRootSpans(context.Background(), 0)
	require.Error(t, err)

	var storeErr *TraceStoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "get_spans", storeErr.Operation)
	assert.Equal(t, http.StatusNotFound, storeErr.StatusCode)
}

func TestAddAnnotations(t *testing.T) {
	var received annotationsRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/span_annotations", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
	})

	err := client.AddAnnotations(context.Background(), []Annotation{
		{SpanID: "s1", Label: "4", Score: 4, Explanation: "covers the question"},
	})
	require.NoError(t, err)

	require.Len(t, received.Data, 1)
	annotation := received.Data[0]
	assert.Equal(t, "s1", annotation.SpanID)
	assert.Equal(t, "relevance", annotation.Name)
	assert.Equal(t, "LLM", annotation.AnnotatorKind)
	assert.Equal(t, "4", annotation.Result.Label)
	assert.Equal(t, float64(4), annotation.Result.Score)
}

func TestAddAnnotationsEmptyIsNoop(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	require.NoError(t, client.AddAnnotations(context.Background(), nil))
	assert.False(t, called)
}

func TestAddAnnotationsHTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	err := client.AddAnnotations(context.Background(), []Annotation{{SpanID: "s1", Label: "3", Score: 3}})
	require.Error(t, err)

	var storeErr *TraceStoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "annotate", storeErr.Operation)
}
