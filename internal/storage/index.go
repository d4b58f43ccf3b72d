// Package storage holds the vector index adapters: Qdrant for deployments and
// an in-memory brute-force index for tests and single-process use.
package storage

import (
	"context"

	"github.com/bull/docqa/internal/domain"
)

// Metric tells callers how to read Hit scores.
type Metric int

const (
	// MetricCosine scores are cosine similarities, higher is closer.
	MetricCosine Metric = iota
	// MetricDistance scores are unbounded distances, lower is closer.
	MetricDistance
)

// Hit is one search result with the index's raw score.
type Hit struct {
	Chunk domain.Chunk
	Score float64
}

// Index is the vector index contract used by ingestion and retrieval.
// Upsert is idempotent keyed by chunk id.
type Index interface {
	Upsert(ctx context.Context, chunks []domain.Chunk) error
	DeleteDocument(ctx context.Context, documentID string) error
	Search(ctx context.Context, vector []float32, k int, filter domain.Filter) ([]Hit, error)
	Metric() Metric
	Health(ctx context.Context) error
}
