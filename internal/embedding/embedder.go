// Package embedding turns text into vectors through an OpenAI-compatible
// embeddings endpoint.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/openai/openai-go"
	"golang.org/x/time/rate"

	"github.com/bull/docqa/internal/domain"
	"github.com/bull/docqa/internal/retry"
)

const (
	// DefaultModel is the OpenAI model used for generating embeddings.
	DefaultModel = "text-embedding-3-small"

	// DefaultDimension is the vector dimension for text-embedding-3-small.
	DefaultDimension = 1536

	// DefaultBatchSize balances requests-per-minute vs tokens-per-minute rate limits.
	DefaultBatchSize = 100
)

// Options configures an Embedder. Zero values fall back to defaults.
type Options struct {
	Model     string
	Dimension int
	BatchSize int
	// RequestsPerSecond throttles batch requests; 0 disables throttling.
	RequestsPerSecond float64
}

// Embedder generates embeddings in batches. Each batch waits on a shared
// rate limiter and gets one retry on transient API errors.
type Embedder struct {
	client    *Client
	model     string
	dimension int
	batchSize int
	limiter   *rate.Limiter
}

// NewEmbedder creates a new Embedder with the given client.
func NewEmbedder(client *Client, opts Options) *Embedder {
	e := &Embedder{
		client:    client,
		model:     opts.Model,
		dimension: opts.Dimension,
		batchSize: opts.BatchSize,
		limiter:   rate.NewLimiter(rate.Inf, 1),
	}
	if e.model == "" {
		e.model = DefaultModel
	}
	if e.dimension <= 0 {
		e.dimension = DefaultDimension
	}
	if e.batchSize <= 0 {
		e.batchSize = DefaultBatchSize
	}
	if opts.RequestsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return e
}

// Dimension returns the length of produced vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed returns one vector per text, in order. Failures are reported as
// domain.KindEmbeddingUnavailable (or KindTimeout on deadline).
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, domain.E(domain.KindEmbeddingUnavailable, "embedding.Embed", err)
		}
		vectors, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, domain.E(domain.KindEmbeddingUnavailable, "embedding.Embed",
				fmt.Errorf("batch %d-%d: %w", i, end, err))
		}
		all = append(all, vectors...)
	}
	return all, nil
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model: openai.EmbeddingModel(e.model),
	}
	if strings.HasPrefix(e.model, "text-embedding-3") {
		params.Dimensions = openai.Int(int64(e.dimension))
	}

	var vectors [][]float32
	err := retry.Once(ctx, func() error {
		resp, err := e.client.client.Embeddings.New(ctx, params)
		if err != nil {
			return err
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(texts))
		}
		vectors = make([][]float32, len(resp.Data))
		for _, data := range resp.Data {
			if int(data.Index) >= len(vectors) {
				return fmt.Errorf("embedding index %d out of range", data.Index)
			}
			vectors[data.Index] = toFloat32(data.Embedding)
		}
		return nil
	}, IsTransient)
	return vectors, err
}

// IsTransient reports whether an OpenAI API error is worth retrying:
// rate limits, server errors and network failures.
func IsTransient(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// toFloat32 converts []float64 to []float32.
// OpenAI API returns float64, but storage uses float32 for memory efficiency.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
