// Package vectordb stores embedded knowledge base documents and answers
// nearest neighbour queries over them.
package vectordb

import (
	"context"
	"fmt"
)

// Match is a scored hit.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// Record is a document to upsert.
type Record struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata"`
}

// Store is a vector index.
type Store interface {
	Name() string
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
	Upsert(ctx context.Context, records []Record) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

const MaxTopK = 100

func checkTopK(k int) error {
	if k < 1 || k > MaxTopK {
		return fmt.Errorf("vectordb: top_k must be between 1 and %d, got %d", MaxTopK, k)
	}
	return nil
}
