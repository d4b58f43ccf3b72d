package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docqa/internal/chat"
	"github.com/bull/docqa/internal/config"
	"github.com/bull/docqa/internal/embedding/embeddingtest"
	"github.com/bull/docqa/internal/generation/generationtest"
	"github.com/bull/docqa/internal/ingest"
)

func offlineConfig() *config.Config {
	cfg := config.Default()
	cfg.Store.VectorStore = "memory"
	cfg.Store.CatalogPath = ":memory:"
	cfg.Store.ConversationStore = "memory"
	cfg.OpenAI.EmbeddingDimension = 64
	cfg.Retrieval.MinScore = 0
	return cfg
}

func TestNewOffline(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	gen := &generationtest.Scripted{Fragments: []string{"The tower is 330 metres tall [1]."}}

	a, err := New(ctx, offlineConfig(), nil,
		WithEmbedder(embeddingtest.New(64)),
		WithGenerator(gen),
	)
	require.NoError(t, err)
	defer a.Close()

	doc, err := a.Pipeline.Ingest(ctx, ingest.File{
		Name: "tower.txt",
		Data: []byte("The tower is 330 metres tall and was finished in 1889."),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, doc.ChunkCount)

	answer, err := a.Chat.Ask(ctx, chat.Request{Question: "How tall is the tower?"})
	require.NoError(t, err)
	assert.Equal(t, "The tower is 330 metres tall [1].", answer.Text)
	assert.NotEmpty(t, answer.ConversationID)
	require.Len(t, gen.Prompts(), 1)
	assert.Contains(t, gen.Prompts()[0], "finished in 1889")

	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/documents/"+doc.ID, nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewRequiresAPIKey(t *testing.T) {
	cfg := offlineConfig()
	cfg.OpenAI.APIKey = ""

	_, err := New(context.Background(), cfg, nil, WithEmbedder(embeddingtest.New(64)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestCloseIsIdempotent(t *testing.T) {
	a, err := New(context.Background(), offlineConfig(), nil,
		WithEmbedder(embeddingtest.New(64)),
		WithGenerator(&generationtest.Scripted{}),
	)
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}
