// Package retriever performs vector search over the Federal Reserve
// speech collection.
package retriever

import (
	"context"
	"log/slog"

	"github.com/kadirpekel/fedqa/pkg/databases"
	"github.com/kadirpekel/fedqa/pkg/embedders"
)

// Payload field names in the speech collection.
const (
	fieldDocument    = "document"
	fieldTitle       = "title"
	fieldSpeaker     = "speaker"
	fieldPubDate     = "pub_date"
	fieldCategory    = "category"
	fieldURL         = "url"
	fieldDescription = "description"
)

// DefaultTopK is the number of passages returned when the caller does
// not specify a limit.
const DefaultTopK = 5

// RetrievedPassage is one scored passage from the knowledge base.
type RetrievedPassage struct {
	Content     string  `json:"content"`
	Title       string  `json:"title"`
	Speaker     string  `json:"speaker"`
	PubDate     string  `json:"pub_date"`
	Category    string  `json:"category"`
	URL         string  `json:"url"`
	Description string  `json:"description"`
	Score       float32 `json:"score"`
}

// Retriever embeds queries and searches the speech collection.
type Retriever struct {
	store      databases.VectorStore
	embedder   embedders.Embedder
	collection string
	logger     *slog.Logger
}

// New creates a retriever over the given store and collection.
func New(store databases.VectorStore, embedder embedders.Embedder, collection string, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		store:      store,
		embedder:   embedder,
		collection: collection,
		logger:     logger,
	}
}

// Collection returns the collection name this retriever searches.
func (r *Retriever) Collection() string {
	return r.collection
}

// VerifyCollection is a read-only health check. It reports whether the
// collection exists and its point count, vector size, and distance
// metric, and never mutates the store. Idempotent: repeated calls
// observe the same point count when nothing else writes.
func (r *Retriever) VerifyCollection(ctx context.Context) (*databases.CollectionInfo, error) {
	info, err := r.store.CollectionInfo(ctx, r.collection)
	if err != nil {
		return nil, NewRetrievalError("verify_collection", "failed to inspect collection", "", err)
	}

	r.logger.Debug("Collection status",
		"collection", r.collection,
		"exists", info.Exists,
		"points", info.PointCount,
		"vector_size", info.VectorSize,
		"distance", info.DistanceMetric)

	return info, nil
}

// EnsureCollection creates the collection with the embedder's vector
// size when it does not exist yet. Startup and ingest concern, kept
// apart from the VerifyCollection health check.
func (r *Retriever) EnsureCollection(ctx context.Context) error {
	exists, err := r.store.CollectionExists(ctx, r.collection)
	if err != nil {
		return NewRetrievalError("verify_collection", "failed to check collection", "", err)
	}

	if exists {
		return nil
	}

	r.logger.Info("Creating collection", "collection", r.collection, "dimensions", r.embedder.Dimensions())
	if err := r.store.CreateCollection(ctx, r.collection, uint64(r.embedder.Dimensions())); err != nil {
		return NewRetrievalError("verify_collection", "failed to create collection", "", err)
	}

	return nil
}

// Search embeds the query and returns the topK nearest passages.
// topK <= 0 falls back to DefaultTopK.
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]RetrievedPassage, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, NewRetrievalError("embed", "failed to embed query", query, err)
	}
	if len(vectors) != 1 {
		return nil, NewRetrievalError("embed", "unexpected embedding count", query, nil)
	}

	results, err := r.store.Search(ctx, r.collection, vectors[0], topK)
	if err != nil {
		return nil, NewRetrievalError("search", "vector search failed", query, err)
	}

	passages := make([]RetrievedPassage, 0, len(results))
	for _, result := range results {
		passages = append(passages, RetrievedPassage{
			Content:     metadataString(result.Metadata, fieldDocument),
			Title:       metadataString(result.Metadata, fieldTitle),
			Speaker:     metadataString(result.Metadata, fieldSpeaker),
			PubDate:     metadataString(result.Metadata, fieldPubDate),
			Category:    metadataString(result.Metadata, fieldCategory),
			URL:         metadataString(result.Metadata, fieldURL),
			Description: metadataString(result.Metadata, fieldDescription),
			Score:       result.Score,
		})
	}

	r.logger.Debug("Retrieved passages", "query", query, "count", len(passages))
	return passages, nil
}

func metadataString(metadata map[string]interface{}, key string) string {
	if v, ok := metadata[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
