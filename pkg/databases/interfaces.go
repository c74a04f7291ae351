// Package databases provides vector index providers.
package databases

import "context"

// SearchHit is one ranked match from the index. Payload carries the
// metadata stored at upsert time, including the back-reference to the
// document store.
type SearchHit struct {
	ID      uint64
	Score   float32
	Payload map[string]interface{}
}

// VectorIndex is a vector similarity index over one collection.
type VectorIndex interface {
	// Upsert adds or replaces a point.
	Upsert(ctx context.Context, id uint64, vector []float32, payload map[string]interface{}) error

	// Search returns up to limit hits ranked by similarity. Filter
	// entries must all match the point payload.
	Search(ctx context.Context, vector []float32, limit int, filter map[string]string) ([]SearchHit, error)

	// Delete removes a point by id.
	Delete(ctx context.Context, id uint64) error

	Close() error
}
