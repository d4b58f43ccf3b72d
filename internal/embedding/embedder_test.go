package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docqa/internal/domain"
)

type embedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

// fakeEmbeddings answers with vectors whose first component is the length of
// each input, so the test can check ordering.
func fakeEmbeddings(t *testing.T, failures int, status int) (*httptest.Server, *atomic.Int32) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if int(n) <= failures {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":{"message":"nope","type":"test"}}`)
			return
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data := make([]map[string]any, len(req.Input))
		for i, in := range req.Input {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": []float64{float64(len(in)), 1}}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestEmbedder(t *testing.T, url string, batch int) *Embedder {
	client, err := NewClient("test-key", url+"/v1/")
	require.NoError(t, err)
	return NewEmbedder(client, Options{Dimension: 2, BatchSize: batch})
}

func TestEmbedBatchesAndKeepsOrder(t *testing.T) {
	srv, calls := fakeEmbeddings(t, 0, 0)
	e := newTestEmbedder(t, srv.URL, 2)

	vectors, err := e.Embed(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{1, 1}, vectors[0])
	assert.Equal(t, []float32{3, 1}, vectors[2])
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbedRetriesRateLimitOnce(t *testing.T) {
	srv, calls := fakeEmbeddings(t, 1, http.StatusTooManyRequests)
	e := newTestEmbedder(t, srv.URL, 10)

	vectors, err := e.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)
	assert.Len(t, vectors, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbedPermanentFailure(t *testing.T) {
	srv, calls := fakeEmbeddings(t, 5, http.StatusBadRequest)
	e := newTestEmbedder(t, srv.URL, 10)

	_, err := e.Embed(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient("", "")
	assert.Error(t, err)
}
