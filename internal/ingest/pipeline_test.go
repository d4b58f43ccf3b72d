package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docqa/internal/catalog"
	"github.com/bull/docqa/internal/chunker"
	"github.com/bull/docqa/internal/domain"
	"github.com/bull/docqa/internal/embedding/embeddingtest"
	"github.com/bull/docqa/internal/extract"
	"github.com/bull/docqa/internal/logger"
	"github.com/bull/docqa/internal/metadata"
	"github.com/bull/docqa/internal/retriever"
	"github.com/bull/docqa/internal/storage"
)

const dim = 128

type fixture struct {
	pipeline *Pipeline
	index    *storage.MemoryIndex
	catalog  *catalog.Memory
	embedder *embeddingtest.Hashing
}

func newFixture(t *testing.T, chunkSize int, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		index:    storage.NewMemoryIndex(dim),
		catalog:  catalog.NewMemory(),
		embedder: embeddingtest.New(dim),
	}
	f.pipeline = NewPipeline(
		extract.NewRegistry(extract.NewPDF(nil, "")),
		chunker.New(chunkSize, chunkSize/5),
		f.embedder, f.index, f.catalog, nil, logger.Nop(), opts,
	)
	return f
}

func TestIngestSingleSentence(t *testing.T) {
	f := newFixture(t, 1000, Options{})
	text := "Regular exercise improves cardiovascular health."

	doc, err := f.pipeline.Ingest(context.Background(), File{Name: "health.txt", Data: []byte(text)})
	require.NoError(t, err)

	assert.Equal(t, 1, doc.ChunkCount)
	assert.Equal(t, text, doc.Metadata.Title)
	assert.Equal(t, domain.SourceText, doc.Metadata.SourceType)
	assert.Equal(t, 1, f.index.Len())

	hits, err := f.index.Search(context.Background(), make([]float32, dim), 10, domain.Filter{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, text, hits[0].Chunk.Text)
	assert.Equal(t, doc.ID, hits[0].Chunk.DocumentID)
	assert.Equal(t, domain.ChunkID(doc.ID, 0), hits[0].Chunk.ID)
	// Index payloads keep milliseconds; the catalog must agree with them.
	ingested := doc.Metadata.IngestedAt
	assert.True(t, ingested.Equal(ingested.Truncate(time.Millisecond)))
	assert.True(t, ingested.Equal(hits[0].Chunk.IngestedAt))

	stored, err := f.pipeline.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc, stored)
}

func TestDeletedDocumentNeverRetrieved(t *testing.T) {
	f := newFixture(t, 100, Options{})
	ctx := context.Background()

	var sentences []string
	for i := 0; i < 5; i++ {
		sentences = append(sentences, fmt.Sprintf("Paragraph %d explains solar panel efficiency and sunlight conversion in detail.", i))
	}
	doomed, err := f.pipeline.Ingest(ctx, File{Name: "solar.txt", Data: []byte(strings.Join(sentences, "\n\n"))})
	require.NoError(t, err)
	require.Equal(t, 5, doomed.ChunkCount)

	kept, err := f.pipeline.Ingest(ctx, File{Name: "wind.txt", Data: []byte("Wind turbines and solar panels both generate electricity.")})
	require.NoError(t, err)

	r := retriever.New(f.embedder, f.index, retriever.Options{})
	before, err := r.Retrieve(ctx, "solar panel efficiency", 10, domain.Filter{})
	require.NoError(t, err)
	require.NotEmpty(t, before)

	require.NoError(t, f.pipeline.Delete(ctx, doomed.ID))

	doomedIDs := map[string]bool{}
	for i := 0; i < 5; i++ {
		doomedIDs[domain.ChunkID(doomed.ID, i)] = true
	}
	for _, q := range []string{"solar panel efficiency", "sunlight conversion", "paragraph explains"} {
		got, err := r.Retrieve(ctx, q, 10, domain.Filter{})
		require.NoError(t, err)
		for _, p := range got {
			assert.False(t, doomedIDs[p.Chunk.ID], "deleted chunk %s returned for %q", p.Chunk.ID, q)
			assert.Equal(t, kept.ID, p.Chunk.DocumentID)
		}
	}

	_, err = f.pipeline.Get(ctx, doomed.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	assert.ErrorIs(t, f.pipeline.Delete(ctx, doomed.ID), domain.ErrDocumentNotFound)
}

func TestIngestRejections(t *testing.T) {
	f := newFixture(t, 1000, Options{MaxUploadBytes: 64})

	tests := []struct {
		name string
		file File
		want error
	}{
		{"unsupported", File{Name: "slides.pptx", Data: []byte("PK")}, domain.ErrUnsupportedFormat},
		{"too large", File{Name: "big.txt", Data: []byte(strings.Repeat("x", 65))}, domain.ErrInvalidRequest},
		{"empty", File{Name: "empty.txt"}, domain.ErrInvalidRequest},
		{"whitespace only", File{Name: "blank.txt", Data: []byte("  \n\n  ")}, domain.ErrNoContent},
		{"invalid utf8", File{Name: "bin.txt", Data: []byte{0xff, 0xfe}}, domain.ErrExtraction},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.pipeline.Ingest(context.Background(), tc.file)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Equal(t, 0, f.index.Len())
}

func TestIngestEmbeddingFailure(t *testing.T) {
	f := newFixture(t, 1000, Options{})
	f.embedder.Err = errors.New("connection refused")

	_, err := f.pipeline.Ingest(context.Background(), File{Name: "a.txt", Data: []byte("some text here")})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	docs, err := f.pipeline.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

type failingCatalog struct{ catalog.Catalog }

func (failingCatalog) Put(context.Context, domain.Document) error {
	return errors.New("disk full")
}

func TestCatalogFailureRemovesChunks(t *testing.T) {
	f := newFixture(t, 1000, Options{})
	f.pipeline.catalog = failingCatalog{f.catalog}

	_, err := f.pipeline.Ingest(context.Background(), File{Name: "a.txt", Data: []byte("some text here")})
	require.Error(t, err)
	assert.Equal(t, 0, f.index.Len())
}

type stubSummarizer struct{ err error }

func (s stubSummarizer) Summarize(context.Context, string, string) (*metadata.Summary, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &metadata.Summary{Summary: "About exercise.", Keywords: []string{"exercise"}}, nil
}

func TestIngestSummary(t *testing.T) {
	f := newFixture(t, 1000, Options{})
	f.pipeline.summarizer = stubSummarizer{}
	doc, err := f.pipeline.Ingest(context.Background(), File{Name: "a.txt", Data: []byte("Exercise is good.")})
	require.NoError(t, err)
	assert.Equal(t, "About exercise.", doc.Metadata.Summary)
	assert.Equal(t, []string{"exercise"}, doc.Metadata.Keywords)

	f.pipeline.summarizer = stubSummarizer{err: errors.New("model down")}
	doc, err = f.pipeline.Ingest(context.Background(), File{Name: "b.txt", Data: []byte("Exercise is good.")})
	require.NoError(t, err, "summary failures are not fatal")
	assert.Empty(t, doc.Metadata.Summary)
}

func TestIngestPageNumbers(t *testing.T) {
	f := newFixture(t, 60, Options{})
	f.pipeline.chunker = chunker.New(60, 0)
	f.pipeline.extractor = extract.NewRegistry(extract.NewPDF(pagesRunner{}, ""))

	doc, err := f.pipeline.Ingest(context.Background(), File{Name: "r.pdf", Data: []byte("%PDF-1.4")})
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Metadata.PageCount)

	hits, err := f.index.Search(context.Background(), make([]float32, dim), 10, domain.Filter{})
	require.NoError(t, err)
	pages := map[int]bool{}
	for _, h := range hits {
		pages[h.Chunk.Page] = true
	}
	assert.True(t, pages[1])
	assert.True(t, pages[2])
}

type pagesRunner struct{}

func (pagesRunner) Run(_ context.Context, name string, _ ...string) ([]byte, error) {
	if name == "pdfinfo" {
		return nil, errors.New("not installed")
	}
	return []byte("First page talks about the introduction of the topic.\fSecond page holds the conclusion of the report."), nil
}

type slowEmbedder struct {
	*embeddingtest.Hashing
	active, peak atomic.Int32
}

func (s *slowEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return s.Hashing.Embed(ctx, texts)
}

func TestIngestBatchCollectsFailuresAndBoundsConcurrency(t *testing.T) {
	f := newFixture(t, 1000, Options{Concurrency: 2})
	slow := &slowEmbedder{Hashing: embeddingtest.New(dim)}
	f.pipeline.embedder = slow

	files := []File{
		{Name: "a.txt", Data: []byte("alpha document text")},
		{Name: "b.exe", Data: []byte("MZ")},
		{Name: "c.txt", Data: []byte("gamma document text")},
		{Name: "d.md", Data: []byte("# Delta\n\ndelta document text")},
		{Name: "e.txt", Data: []byte("epsilon document text")},
	}
	res, err := f.pipeline.IngestBatch(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, 5, res.TotalDocs)
	assert.Equal(t, 4, res.SuccessfulDocs)
	assert.Equal(t, 4, res.TotalChunks)
	require.Len(t, res.FailedDocs, 1)
	assert.Equal(t, "b.exe", res.FailedDocs[0].Path)
	assert.Equal(t, domain.KindUnsupportedFormat, res.FailedDocs[0].Kind)
	assert.LessOrEqual(t, slow.peak.Load(), int32(2))
}

type blockingEmbedder struct{}

func (blockingEmbedder) Embed(ctx context.Context, _ []string) ([][]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestIngestTimeout(t *testing.T) {
	f := newFixture(t, 1000, Options{Timeout: 20 * time.Millisecond})
	f.pipeline.embedder = blockingEmbedder{}

	_, err := f.pipeline.Ingest(context.Background(), File{Name: "a.txt", Data: []byte("slow text")})
	assert.ErrorIs(t, err, domain.ErrTimeout)
}
