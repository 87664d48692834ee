// Package databases provides the vector store abstraction and its Qdrant
// implementation.
package databases

import "context"

// SearchResult is one scored point returned from vector search.
type SearchResult struct {
	ID       string
	Metadata map[string]interface{}
	Score    float32
}

// Point is a vector with payload, ready for upsert.
type Point struct {
	ID       string
	Vector   []float32
	Metadata map[string]interface{}
}

// CollectionInfo is a read-only snapshot of a collection's health.
// Exists false leaves the remaining fields zero.
type CollectionInfo struct {
	Exists         bool
	PointCount     uint64
	VectorSize     uint64
	DistanceMetric string
}

// VectorStore is the capability the retriever and ingester depend on.
type VectorStore interface {
	// CollectionExists reports whether the collection is present.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// CollectionInfo returns the collection's health snapshot without
	// mutating anything.
	CollectionInfo(ctx context.Context, collection string) (*CollectionInfo, error)

	// CreateCollection creates the collection if missing. Creating an
	// existing collection is not an error.
	CreateCollection(ctx context.Context, collection string, vectorSize uint64) error

	// Upsert writes points into the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns the topK nearest points with payloads.
	Search(ctx context.Context, collection string, queryVector []float32, topK int) ([]SearchResult, error)

	Close() error
}
