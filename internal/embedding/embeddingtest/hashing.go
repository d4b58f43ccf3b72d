// Package embeddingtest provides a deterministic offline embedder for tests.
package embeddingtest

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/bull/docqa/internal/lexical"
)

// Hashing embeds text as a bag of hashed words. Texts sharing words get a
// positive cosine similarity, which is enough to exercise ranking.
type Hashing struct {
	Dim int
	// Err, when set, is returned by every call.
	Err error

	mu    sync.Mutex
	calls int
}

func New(dim int) *Hashing { return &Hashing{Dim: dim} }

func (h *Hashing) Dimension() int { return h.Dim }

// Calls returns how many times Embed ran.
func (h *Hashing) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func (h *Hashing) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	if h.Err != nil {
		return nil, h.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, h.Dim)
		for _, w := range lexical.Words(t) {
			f := fnv.New32a()
			_, _ = f.Write([]byte(w))
			v[int(f.Sum32())%h.Dim]++
		}
		out[i] = v
	}
	return out, nil
}
