package storage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/bull/docqa/internal/domain"
)

// MemoryIndex is a brute-force cosine index kept in process memory.
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	chunks    map[string]domain.Chunk
}

// NewMemoryIndex creates an empty index for vectors of the given dimension.
func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{dimension: dimension, chunks: make(map[string]domain.Chunk)}
}

func (m *MemoryIndex) Upsert(_ context.Context, chunks []domain.Chunk) error {
	for i, c := range chunks {
		if len(c.Embedding) != m.dimension {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(c.Embedding), m.dimension)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		m.chunks[c.ID] = c
	}
	return nil
}

func (m *MemoryIndex) DeleteDocument(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.chunks {
		if c.DocumentID == documentID {
			delete(m.chunks, id)
		}
	}
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, vector []float32, k int, filter domain.Filter) ([]Hit, error) {
	if len(vector) != m.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), m.dimension)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	hits := make([]Hit, 0, len(m.chunks))
	for _, c := range m.chunks {
		if !filter.Matches(c) {
			continue
		}
		hits = append(hits, Hit{Chunk: c, Score: cosine(vector, c.Embedding)})
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Chunk.IngestedAt.Equal(b.Chunk.IngestedAt) {
			return a.Chunk.IngestedAt.After(b.Chunk.IngestedAt)
		}
		if a.Chunk.Ordinal != b.Chunk.Ordinal {
			return a.Chunk.Ordinal < b.Chunk.Ordinal
		}
		return a.Chunk.ID < b.Chunk.ID
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *MemoryIndex) Metric() Metric { return MetricCosine }

func (m *MemoryIndex) Health(context.Context) error { return nil }

// Len returns the number of stored chunks.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
