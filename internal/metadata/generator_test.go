package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docqa/internal/logger"
)

func TestParseSummary(t *testing.T) {
	s, err := parseSummary(`{"summary": " Test summary ", "keywords": ["Qdrant", "qdrant", "", "embeddings"]}`)
	require.NoError(t, err)

	assert.Equal(t, "Test summary", s.Summary)
	assert.Equal(t, []string{"Qdrant", "embeddings"}, s.Keywords)
}

func TestParseSummaryCapsKeywords(t *testing.T) {
	words := make([]string, 20)
	for i := range words {
		words[i] = fmt.Sprintf("k%d", i)
	}
	raw, _ := json.Marshal(Summary{Summary: "s", Keywords: words})

	s, err := parseSummary(string(raw))
	require.NoError(t, err)
	assert.Len(t, s.Keywords, maxKeywords)
}

func TestParseSummaryInvalidJSON(t *testing.T) {
	_, err := parseSummary("not json")
	assert.ErrorContains(t, err, "failed to parse response")
}

func TestTruncateContent(t *testing.T) {
	g := NewGenerator(nil, "", 0, logger.Nop())
	longContent := strings.Repeat("This is a test content. ", 4000)

	truncated := g.truncateContent(longContent)

	assert.Len(t, truncated, DefaultMaxTokens*4)
	assert.True(t, strings.HasPrefix(longContent, truncated))
}

func TestTruncateContentShort(t *testing.T) {
	g := NewGenerator(nil, "", 0, logger.Nop())
	short := strings.Repeat("Short. ", 140)
	assert.Equal(t, short, g.truncateContent(short))
}

func TestTruncateContentCustomMaxTokens(t *testing.T) {
	g := NewGenerator(nil, "", 1000, logger.Nop())
	truncated := g.truncateContent(strings.Repeat("Content. ", 1000))
	assert.Len(t, truncated, 4000)
}

func TestSummarizeRequestsJSON(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"summary\":\"About solar power.\",\"keywords\":[\"solar\"]}"}}]}`)
	}))
	defer srv.Close()

	client := openai.NewClient(option.WithAPIKey("test"), option.WithBaseURL(srv.URL+"/v1/"), option.WithMaxRetries(0))
	g := NewGenerator(&client, "summary-model", 0, logger.Nop())

	s, err := g.Summarize(context.Background(), "Solar", "Solar panels convert sunlight.")
	require.NoError(t, err)
	assert.Equal(t, "About solar power.", s.Summary)
	assert.Equal(t, []string{"solar"}, s.Keywords)
	assert.Equal(t, "summary-model", body["model"])
	assert.Equal(t, "json_object", body["response_format"].(map[string]any)["type"])
}
