// Package retriever finds the passages most relevant to a question.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/bull/docqa/internal/domain"
	"github.com/bull/docqa/internal/lexical"
	"github.com/bull/docqa/internal/storage"
)

// Embedder turns texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Options tunes ranking. Zero values fall back to defaults.
type Options struct {
	// MinScore drops passages whose normalised score is below it.
	MinScore float64
	// DedupThreshold drops a passage whose word-set Jaccard similarity with a
	// higher-ranked passage exceeds it.
	DedupThreshold float64
	// Overfetch multiplies k for the index query to leave room for
	// thresholding and de-duplication.
	Overfetch int
}

const (
	defaultDedupThreshold = 0.8
	defaultOverfetch      = 3
)

// Retriever is stateless and safe for concurrent use.
type Retriever struct {
	embedder Embedder
	index    storage.Index
	opts     Options
}

func New(embedder Embedder, index storage.Index, opts Options) *Retriever {
	if opts.DedupThreshold <= 0 {
		opts.DedupThreshold = defaultDedupThreshold
	}
	if opts.Overfetch <= 0 {
		opts.Overfetch = defaultOverfetch
	}
	return &Retriever{embedder: embedder, index: index, opts: opts}
}

// Retrieve returns at most k passages ranked by relevance. An empty index or
// no passage above MinScore gives an empty result and a nil error; a broken
// embedder or index is always an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, filter domain.Filter) ([]domain.RetrievedPassage, error) {
	const op = "retriever.Retrieve"
	if k <= 0 {
		return nil, domain.Errorf(domain.KindInvalidRequest, op, "k must be positive, got %d", k)
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		if isCanceled(ctx, err) {
			return nil, fmt.Errorf("%s: %w", op, context.Canceled)
		}
		if domain.KindOf(err) == domain.KindInternal {
			return nil, domain.E(domain.KindEmbeddingUnavailable, op, err)
		}
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, domain.Errorf(domain.KindEmbeddingUnavailable, op, "expected 1 query vector, got %d", len(vectors))
	}

	hits, err := r.index.Search(ctx, vectors[0], k*r.opts.Overfetch, filter)
	if err != nil {
		if isCanceled(ctx, err) {
			return nil, fmt.Errorf("%s: %w", op, context.Canceled)
		}
		return nil, domain.E(domain.KindRetrievalUnavailable, op, err)
	}

	metric := r.index.Metric()
	passages := make([]domain.RetrievedPassage, 0, len(hits))
	for _, h := range hits {
		// Trust the index but enforce the filter contract locally too.
		if !filter.Matches(h.Chunk) {
			continue
		}
		score := Normalize(h.Score, metric)
		if score < r.opts.MinScore {
			continue
		}
		passages = append(passages, domain.RetrievedPassage{Chunk: h.Chunk, Score: score})
	}

	sortPassages(passages)
	passages = dedup(passages, r.opts.DedupThreshold)
	if len(passages) > k {
		passages = passages[:k]
	}
	for i := range passages {
		passages[i].Rank = i + 1
	}
	return passages, nil
}

// Normalize maps a raw index score onto [0,1], higher meaning more similar.
func Normalize(score float64, metric storage.Metric) float64 {
	if math.IsNaN(score) {
		return 0
	}
	switch metric {
	case storage.MetricDistance:
		if score < 0 {
			score = 0
		}
		return 1 / (1 + score)
	default:
		return math.Max(0, math.Min(1, score))
	}
}

// sortPassages orders by score, then most recently ingested document, then
// lower ordinal, then chunk id so the order is total.
func sortPassages(ps []domain.RetrievedPassage) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
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
}

// dedup keeps the first of any group of near-duplicate passages. Input must
// be sorted best-first.
func dedup(ps []domain.RetrievedPassage, threshold float64) []domain.RetrievedPassage {
	kept := ps[:0]
	sets := make([]lexical.Set, 0, len(ps))
	for _, p := range ps {
		set := lexical.NewSet(p.Chunk.Text)
		duplicate := false
		for _, s := range sets {
			if lexical.Jaccard(set, s) > threshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		kept = append(kept, p)
		sets = append(sets, set)
	}
	return kept
}

// IsUnavailable reports whether err means the retrieval path is broken
// rather than the request being bad.
// isCanceled reports a request its caller abandoned. Such errors carry no
// unavailable kind, so no fallback answer is attempted for them.
func isCanceled(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled)
}

func IsUnavailable(err error) bool {
	return errors.Is(err, domain.ErrRetrievalUnavailable) || errors.Is(err, domain.ErrEmbeddingUnavailable)
}
