// Package ingest turns uploaded files into catalogued, indexed documents.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/bull/docqa/internal/catalog"
	"github.com/bull/docqa/internal/chunker"
	"github.com/bull/docqa/internal/domain"
	"github.com/bull/docqa/internal/extract"
	"github.com/bull/docqa/internal/logger"
	"github.com/bull/docqa/internal/metadata"
	"github.com/bull/docqa/internal/storage"
)

// File is one upload.
type File struct {
	Name string
	Data []byte
}

// Result contains statistics about a batch ingestion.
type Result struct {
	TotalDocs      int
	TotalChunks    int
	SuccessfulDocs int
	Documents      []domain.Document
	FailedDocs     []FailedDoc
	Duration       time.Duration
}

// FailedDoc represents a document that failed to ingest.
type FailedDoc struct {
	Path   string
	Kind   domain.Kind
	Reason string
}

// Embedder turns chunk texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Summarizer describes a document. It is optional and failures are logged,
// never fatal.
type Summarizer interface {
	Summarize(ctx context.Context, title, content string) (*metadata.Summary, error)
}

// Options bounds ingestion. Zero values fall back to defaults.
type Options struct {
	Concurrency    int
	Timeout        time.Duration
	MaxUploadBytes int64
}

const (
	defaultConcurrency = 4
	defaultTimeout     = 2 * time.Minute
)

// Pipeline orchestrates extraction, chunking, embedding, indexing and
// cataloguing of documents.
type Pipeline struct {
	extractor  *extract.Registry
	chunker    *chunker.Chunker
	embedder   Embedder
	index      storage.Index
	catalog    catalog.Catalog
	summarizer Summarizer
	log        *logger.Logger

	sem  *semaphore.Weighted
	opts Options
	now  func() time.Time
}

// NewPipeline creates a pipeline. summarizer may be nil.
func NewPipeline(
	extractor *extract.Registry,
	chunker *chunker.Chunker,
	embedder Embedder,
	index storage.Index,
	catalog catalog.Catalog,
	summarizer Summarizer,
	log *logger.Logger,
	opts Options,
) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Pipeline{
		extractor:  extractor,
		chunker:    chunker,
		embedder:   embedder,
		index:      index,
		catalog:    catalog,
		summarizer: summarizer,
		log:        log,
		sem:        semaphore.NewWeighted(int64(opts.Concurrency)),
		opts:       opts,
		now:        time.Now,
	}
}

// Ingest validates, extracts, chunks, embeds and indexes one file, then
// records it in the catalog. The document is searchable once Ingest returns
// without error. At most Options.Concurrency documents are processed at once
// across all callers; each runs under Options.Timeout.
func (p *Pipeline) Ingest(ctx context.Context, f File) (domain.Document, error) {
	const op = "ingest.Ingest"
	if err := p.extractor.Validate(f.Name, f.Data, p.opts.MaxUploadBytes); err != nil {
		return domain.Document{}, err
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return domain.Document{}, domain.E(domain.KindInternal, op, err)
	}
	defer p.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	doc, err := p.processDocument(ctx, f)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
			err = domain.E(domain.KindTimeout, op, err)
		}
		p.log.Warn("failed to ingest document", "file", f.Name, "error", err)
		return domain.Document{}, err
	}
	return doc, nil
}

func (p *Pipeline) processDocument(ctx context.Context, f File) (domain.Document, error) {
	const op = "ingest.processDocument"

	res, err := p.extractor.Extract(ctx, f.Name, f.Data)
	if err != nil {
		return domain.Document{}, err
	}
	p.log.Debug("extracted document", "file", f.Name, "chars", len(res.Text), "pages", res.PageCount)

	doc := domain.Document{
		ID:       uuid.New().String(),
		Filename: f.Name,
		Text:     res.Text,
		Metadata: domain.DocumentMetadata{
			Title:      res.Title,
			Author:     res.Author,
			PageCount:  res.PageCount,
			SourceType: res.SourceType,
			IngestedAt: p.now().UTC().Truncate(time.Millisecond),
		},
	}

	chunks := p.chunker.Chunk(res.Text)
	if len(chunks) == 0 {
		return domain.Document{}, domain.E(domain.KindExtraction, op, domain.ErrNoContent)
	}
	texts := make([]string, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		c.ID = domain.ChunkID(doc.ID, c.Ordinal)
		c.DocumentID = doc.ID
		c.Page = res.PageAt(c.Start)
		c.Title = doc.Metadata.Title
		c.SourceType = doc.Metadata.SourceType
		c.IngestedAt = doc.Metadata.IngestedAt
		texts[i] = c.Text
	}
	p.log.Debug("chunked document", "file", f.Name, "chunks", len(chunks))

	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		if domain.KindOf(err) == domain.KindInternal {
			err = domain.E(domain.KindEmbeddingUnavailable, op, err)
		}
		return domain.Document{}, err
	}
	if len(vectors) != len(chunks) {
		return domain.Document{}, domain.Errorf(domain.KindEmbeddingUnavailable, op,
			"got %d embeddings for %d chunks", len(vectors), len(chunks))
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	if err := p.index.Upsert(ctx, chunks); err != nil {
		return domain.Document{}, domain.E(domain.KindRetrievalUnavailable, op, err)
	}
	doc.ChunkCount = len(chunks)

	if p.summarizer != nil {
		if s, err := p.summarizer.Summarize(ctx, doc.Metadata.Title, doc.Text); err != nil {
			p.log.Warn("summary generation failed, continuing without", "file", f.Name, "error", err)
		} else {
			doc.Metadata.Summary = s.Summary
			doc.Metadata.Keywords = s.Keywords
		}
	}

	if err := p.catalog.Put(ctx, doc); err != nil {
		// Leave no orphaned chunks behind. The cleanup gets its own context
		// since ctx may be the reason Put failed.
		cleanup, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if derr := p.index.DeleteDocument(cleanup, doc.ID); derr != nil {
			p.log.Error("failed to remove chunks of uncatalogued document", "document_id", doc.ID, "error", derr)
		}
		return domain.Document{}, err
	}

	p.log.Info("ingested document", "document_id", doc.ID, "file", f.Name, "chunks", doc.ChunkCount)
	return doc, nil
}

// IngestBatch ingests files concurrently. Individual failures are collected
// in Result.FailedDocs and never abort the batch; the returned error is only
// non-nil when ctx itself ends.
func (p *Pipeline) IngestBatch(ctx context.Context, files []File) (*Result, error) {
	start := time.Now()
	result := &Result{TotalDocs: len(files)}

	docs := make([]domain.Document, len(files))
	errs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i, f := range files {
		g.Go(func() error {
			docs[i], errs[i] = p.Ingest(gctx, f)
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err != nil {
			result.FailedDocs = append(result.FailedDocs, FailedDoc{
				Path:   files[i].Name,
				Kind:   domain.KindOf(err),
				Reason: err.Error(),
			})
			continue
		}
		result.SuccessfulDocs++
		result.TotalChunks += docs[i].ChunkCount
		result.Documents = append(result.Documents, docs[i])
	}

	result.Duration = time.Since(start)
	p.log.Info("ingestion complete",
		"successful", result.SuccessfulDocs,
		"failed", len(result.FailedDocs),
		"chunks", result.TotalChunks,
		"duration", result.Duration,
	)
	return result, ctx.Err()
}

// Delete removes a document and all of its chunks. Chunks go first so a
// failure never leaves searchable chunks for a document the catalog no
// longer lists.
func (p *Pipeline) Delete(ctx context.Context, id string) error {
	const op = "ingest.Delete"
	if _, err := p.catalog.Get(ctx, id); err != nil {
		return err
	}
	if err := p.index.DeleteDocument(ctx, id); err != nil {
		return domain.E(domain.KindRetrievalUnavailable, op, err)
	}
	if err := p.catalog.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
		return err
	}
	p.log.Info("deleted document", "document_id", id)
	return nil
}

// Get returns a catalogued document.
func (p *Pipeline) Get(ctx context.Context, id string) (domain.Document, error) {
	return p.catalog.Get(ctx, id)
}

// List returns all catalogued documents, newest first.
func (p *Pipeline) List(ctx context.Context) ([]domain.Document, error) {
	return p.catalog.List(ctx)
}
