package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/bull/docqa/internal/domain"
	"github.com/bull/docqa/internal/retry"
)

const vectorName = "content"

// QdrantIndex stores chunks as points of a single collection with a named
// "content" vector and the chunk fields as payload.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// NewQdrantIndex connects to Qdrant over gRPC and waits for it to become
// healthy, retrying with exponential backoff for up to 30 seconds.
func NewQdrantIndex(ctx context.Context, host string, port int, collection string, dimension int) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	idx := &QdrantIndex{client: client, collection: collection, dimension: dimension}
	if err := retry.Persistent(ctx, func() error { return idx.Health(ctx) }); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}
	return idx, nil
}

// Health performs a single health check against Qdrant.
func (s *QdrantIndex) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection creates the collection and its payload indexes if missing.
// Idempotent.
func (s *QdrantIndex) EnsureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range collections {
		if name == s.collection {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			vectorName: {
				Size:     uint64(s.dimension),
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	if err := s.createPayloadIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create payload indexes: %w", err)
	}
	return nil
}

// createPayloadIndexes indexes every field used in search filters.
func (s *QdrantIndex) createPayloadIndexes(ctx context.Context) error {
	fields := map[string]qdrant.FieldType{
		"document_id": qdrant.FieldType_FieldTypeKeyword,
		"source_type": qdrant.FieldType_FieldTypeKeyword,
		"ingested_at": qdrant.FieldType_FieldTypeInteger,
	}
	for field, typ := range fields {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      typ.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}
	return nil
}

// Close closes the Qdrant client connection.
func (s *QdrantIndex) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *QdrantIndex) Metric() Metric { return MetricCosine }

// Upsert stores chunks in batches of 100. Point ids are the chunk ids, so
// re-upserting a chunk overwrites it.
func (s *QdrantIndex) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for i, c := range chunks {
		if len(c.Embedding) != s.dimension {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(c.Embedding), s.dimension)
		}
	}

	const batchSize = 100
	for i := 0; i < len(chunks); i += batchSize {
		end := min(i+batchSize, len(chunks))
		points := make([]*qdrant.PointStruct, 0, end-i)
		for _, c := range chunks[i:end] {
			points = append(points, &qdrant.PointStruct{
				Id: qdrant.NewIDUUID(c.ID),
				Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
					vectorName: qdrant.NewVector(c.Embedding...),
				}),
				Payload: qdrant.NewValueMap(chunkPayload(c)),
			})
		}
		err := retry.Once(ctx, func() error {
			_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
				CollectionName: s.collection,
				Wait:           qdrant.PtrOf(true),
				Points:         points,
			})
			return err
		}, IsTransient)
		if err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// DeleteDocument removes every point whose document_id matches.
func (s *QdrantIndex) DeleteDocument(ctx context.Context, documentID string) error {
	err := retry.Once(ctx, func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: s.collection,
			Wait:           qdrant.PtrOf(true),
			Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
				Must: []*qdrant.Condition{qdrant.NewMatch("document_id", documentID)},
			}),
		})
		return err
	}, IsTransient)
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", documentID, err)
	}
	return nil
}

// Search returns the k nearest chunks to vector that pass filter.
func (s *QdrantIndex) Search(ctx context.Context, vector []float32, k int, filter domain.Filter) ([]Hit, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), s.dimension)
	}

	using := vectorName
	var results []*qdrant.ScoredPoint
	err := retry.Once(ctx, func() error {
		var err error
		results, err = s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.collection,
			Query:          qdrant.NewQuery(vector...),
			Using:          &using,
			Filter:         qdrantFilter(filter),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(false),
		})
		return err
	}, IsTransient)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{
			Chunk: chunkFromPayload(r.Id.GetUuid(), r.Payload),
			Score: float64(r.Score),
		})
	}
	return hits, nil
}

// CountDocument returns how many points belong to a document.
func (s *QdrantIndex) CountDocument(ctx context.Context, documentID string) (uint64, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("document_id", documentID)},
		},
		Exact: qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return n, nil
}

func qdrantFilter(f domain.Filter) *qdrant.Filter {
	var must []*qdrant.Condition
	if len(f.DocumentIDs) > 0 {
		must = append(must, qdrant.NewMatchKeywords("document_id", f.DocumentIDs...))
	}
	if len(f.SourceTypes) > 0 {
		must = append(must, qdrant.NewMatchKeywords("source_type", f.SourceTypes...))
	}
	if !f.IngestedAfter.IsZero() {
		gte := float64(f.IngestedAfter.UnixMilli())
		must = append(must, qdrant.NewRange("ingested_at", &qdrant.Range{Gte: &gte}))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

// chunkPayload stores ingested_at in Unix milliseconds, the same unit the
// range filter uses.
func chunkPayload(c domain.Chunk) map[string]any {
	return map[string]any{
		"document_id": c.DocumentID,
		"ordinal":     c.Ordinal,
		"start":       c.Start,
		"text":        c.Text,
		"page":        c.Page,
		"title":       c.Title,
		"source_type": c.SourceType,
		"ingested_at": c.IngestedAt.UnixMilli(),
	}
}

func chunkFromPayload(id string, payload map[string]*qdrant.Value) domain.Chunk {
	text := payload["text"].GetStringValue()
	return domain.Chunk{
		ID:         id,
		DocumentID: payload["document_id"].GetStringValue(),
		Ordinal:    int(payload["ordinal"].GetIntegerValue()),
		Start:      int(payload["start"].GetIntegerValue()),
		Text:       text,
		Length:     len(text),
		Page:       int(payload["page"].GetIntegerValue()),
		Title:      payload["title"].GetStringValue(),
		SourceType: payload["source_type"].GetStringValue(),
		IngestedAt: time.UnixMilli(payload["ingested_at"].GetIntegerValue()).UTC(),
	}
}
