package storage

import (
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docqa/internal/domain"
)

func TestChunkPayloadKeepsSubSecondIngestTime(t *testing.T) {
	ingested := time.Date(2024, 5, 1, 10, 0, 0, 700_000_000, time.UTC)
	c := domain.Chunk{
		ID:         domain.ChunkID("doc", 3),
		DocumentID: "doc",
		Ordinal:    3,
		Start:      120,
		Text:       "Regular exercise improves cardiovascular health.",
		Page:       2,
		Title:      "Health",
		SourceType: domain.SourcePDF,
		IngestedAt: ingested,
	}

	got := chunkFromPayload(c.ID, qdrant.NewValueMap(chunkPayload(c)))

	assert.Equal(t, c.DocumentID, got.DocumentID)
	assert.Equal(t, c.Ordinal, got.Ordinal)
	assert.Equal(t, c.Start, got.Start)
	assert.Equal(t, c.Page, got.Page)
	assert.Equal(t, len(c.Text), got.Length)
	assert.True(t, ingested.Equal(got.IngestedAt), "got %s", got.IngestedAt)

	f := domain.Filter{IngestedAfter: ingested}
	assert.True(t, f.Matches(got), "a document matches a filter on its own ingestion time")
}

func TestQdrantFilterUsesMilliseconds(t *testing.T) {
	after := time.Date(2024, 5, 1, 10, 0, 0, 700_000_000, time.UTC)

	f := qdrantFilter(domain.Filter{IngestedAfter: after})

	require.NotNil(t, f)
	require.Len(t, f.Must, 1)
	r := f.Must[0].GetField().GetRange()
	require.NotNil(t, r)
	assert.Equal(t, float64(after.UnixMilli()), r.GetGte())
}

func TestQdrantFilterEmpty(t *testing.T) {
	assert.Nil(t, qdrantFilter(domain.Filter{}))
}
