package databases

import (
	"context"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/kadirpekel/fedqa/pkg/config"
)

// maxGrpcMessageSize accommodates large upsert batches of speech chunks.
const maxGrpcMessageSize = 32 * 1024 * 1024

type qdrantStore struct {
	client *qdrant.Client
	config *config.VectorStoreConfig
}

// NewQdrantStoreFromConfig connects to Qdrant over gRPC.
func NewQdrantStoreFromConfig(cfg *config.VectorStoreConfig) (VectorStore, error) {
	useTLS := false
	if cfg.EnableTLS != nil {
		useTLS = *cfg.EnableTLS
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(maxGrpcMessageSize),
				grpc.MaxCallSendMsgSize(maxGrpcMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &qdrantStore{
		client: client,
		config: cfg,
	}, nil
}

func (db *qdrantStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	exists, err := db.client.CollectionExists(ctx, collection)
	if err != nil {
		return false, fmt.Errorf("failed to check if collection exists: %w", err)
	}
	return exists, nil
}

func (db *qdrantStore) CollectionInfo(ctx context.Context, collection string) (*CollectionInfo, error) {
	exists, err := db.client.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to check if collection exists: %w", err)
	}
	if !exists {
		return &CollectionInfo{}, nil
	}

	info, err := db.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection info: %w", err)
	}

	snapshot := &CollectionInfo{
		Exists:     true,
		PointCount: info.GetPointsCount(),
	}
	if params := info.GetConfig().GetParams().GetVectorsConfig().GetParams(); params != nil {
		snapshot.VectorSize = params.GetSize()
		snapshot.DistanceMetric = params.GetDistance().String()
	}

	return snapshot, nil
}

func (db *qdrantStore) CreateCollection(ctx context.Context, collection string, vectorSize uint64) error {
	exists, err := db.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to check if collection exists: %w", err)
	}
	if exists {
		return nil
	}

	err = db.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		// Concurrent creation races are fine
		if strings.Contains(err.Error(), "already exists") {
			return nil
		}
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

func (db *qdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		payload := make(map[string]*qdrant.Value, len(p.Metadata))
		for key, value := range p.Metadata {
			val, err := qdrant.NewValue(value)
			if err != nil {
				return fmt.Errorf("failed to convert metadata value for key %s: %w", key, err)
			}
			payload[key] = val
		}

		qdrantPoints = append(qdrantPoints, &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payload,
		})
	}

	_, err := db.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         qdrantPoints,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	return nil
}

func (db *qdrantStore) Search(ctx context.Context, collection string, queryVector []float32, topK int) ([]SearchResult, error) {
	searchRequest := &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         queryVector,
		Limit:          uint64(topK),
		WithPayload:    qdrant.NewWithPayload(true),
	}

	pointsClient := db.client.GetPointsClient()
	searchResult, err := pointsClient.Search(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	return convertQdrantResults(searchResult.Result), nil
}

func convertQdrantResults(points []*qdrant.ScoredPoint) []SearchResult {
	var results []SearchResult
	for _, point := range points {
		var id string
		if point.Id != nil && point.Id.PointIdOptions != nil {
			switch idType := point.Id.PointIdOptions.(type) {
			case *qdrant.PointId_Uuid:
				id = idType.Uuid
			case *qdrant.PointId_Num:
				id = fmt.Sprintf("%d", idType.Num)
			}
		}

		metadata := make(map[string]interface{})
		if point.Payload != nil {
			for key, value := range point.Payload {
				metadata[key] = convertQdrantValue(value)
			}
		}

		results = append(results, SearchResult{
			ID:       id,
			Metadata: metadata,
			Score:    point.Score,
		})
	}

	return results
}

func convertQdrantValue(value *qdrant.Value) interface{} {
	switch v := value.Kind.(type) {
	case *qdrant.Value_StringValue:
		return v.StringValue
	case *qdrant.Value_IntegerValue:
		return v.IntegerValue
	case *qdrant.Value_DoubleValue:
		return v.DoubleValue
	case *qdrant.Value_BoolValue:
		return v.BoolValue
	case *qdrant.Value_ListValue:
		if v.ListValue == nil {
			return nil
		}
		list := make([]interface{}, len(v.ListValue.Values))
		for i, item := range v.ListValue.Values {
			list[i] = convertQdrantValue(item)
		}
		return list
	default:
		return value
	}
}

func (db *qdrantStore) Close() error {
	return db.client.Close()
}
