package databases

import (
	"context"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection settings for a Qdrant server.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// SetDefaults fills unset fields with sensible defaults.
func (c *QdrantConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "knowledge_base"
	}
}

// qdrantIndex is a Qdrant-backed vector index over a single collection.
type qdrantIndex struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantIndex connects to Qdrant and returns an index over the
// configured collection. The collection itself is created lazily on the
// first upsert, sized from the vector it receives.
func NewQdrantIndex(cfg *QdrantConfig) (VectorIndex, error) {
	cfg.SetDefaults()

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &qdrantIndex{
		client:     client,
		collection: cfg.Collection,
	}, nil
}

// Upsert adds or replaces a point, creating the collection on first use.
func (db *qdrantIndex) Upsert(ctx context.Context, id uint64, vector []float32, payload map[string]interface{}) error {
	exists, err := db.client.CollectionExists(ctx, db.collection)
	if err != nil {
		return fmt.Errorf("failed to check if collection exists: %w", err)
	}

	if !exists {
		// Create collection with vector size based on the provided vector
		err = db.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: db.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(len(vector)),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			// Tolerate a concurrent create of the same collection
			if !strings.Contains(err.Error(), "already exists") {
				return fmt.Errorf("failed to create collection: %w", err)
			}
		}
	}

	values := make(map[string]*qdrant.Value)
	for key, value := range payload {
		val, err := qdrant.NewValue(value)
		if err != nil {
			return fmt.Errorf("failed to convert payload value for key %s: %w", key, err)
		}
		values[key] = val
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDNum(id),
		Vectors: qdrant.NewVectors(vector...),
		Payload: values,
	}

	_, err = db.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: db.collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}

	return nil
}

// Search performs vector similarity search with optional payload filters.
func (db *qdrantIndex) Search(ctx context.Context, vector []float32, limit int, filter map[string]string) ([]SearchHit, error) {
	searchRequest := &qdrant.SearchPoints{
		CollectionName: db.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload:    qdrant.NewWithPayload(true),
	}

	if len(filter) > 0 {
		conditions := make([]*qdrant.Condition, 0, len(filter))
		for key, value := range filter {
			conditions = append(conditions, qdrant.NewMatch(key, value))
		}
		searchRequest.Filter = &qdrant.Filter{Must: conditions}
	}

	pointsClient := db.client.GetPointsClient()
	searchResult, err := pointsClient.Search(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	var hits []SearchHit
	for _, point := range searchResult.Result {
		var id uint64
		if point.Id != nil {
			if num, ok := point.Id.PointIdOptions.(*qdrant.PointId_Num); ok {
				id = num.Num
			}
		}

		payload := make(map[string]interface{})
		for key, value := range point.Payload {
			payload[key] = convertValue(value)
		}

		hits = append(hits, SearchHit{
			ID:      id,
			Score:   point.Score,
			Payload: payload,
		})
	}

	return hits, nil
}

// convertValue converts a Qdrant payload value back to a plain Go value.
func convertValue(value *qdrant.Value) interface{} {
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
			list[i] = convertValue(item)
		}
		return list
	default:
		return value
	}
}

// Delete removes a point by id.
func (db *qdrantIndex) Delete(ctx context.Context, id uint64) error {
	deletePoints := &qdrant.DeletePoints{
		CollectionName: db.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: []*qdrant.PointId{
						{PointIdOptions: &qdrant.PointId_Num{Num: id}},
					},
				},
			},
		},
	}
	_, err := db.client.Delete(ctx, deletePoints)
	if err != nil {
		return fmt.Errorf("failed to delete point %d: %w", id, err)
	}
	return nil
}

// Close closes the Qdrant client.
func (db *qdrantIndex) Close() error {
	return db.client.Close()
}
