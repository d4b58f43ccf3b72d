package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docqa/internal/chat"
	"github.com/bull/docqa/internal/domain"
)

type stubChat struct {
	answer   domain.Answer
	passages []domain.RetrievedPassage
	err      error
	lastReq  chat.Request
	lastK    int
}

func (s *stubChat) Ask(_ context.Context, req chat.Request) (domain.Answer, error) {
	s.lastReq = req
	return s.answer, s.err
}

func (s *stubChat) Search(_ context.Context, _ string, k int, _ domain.Filter) ([]domain.RetrievedPassage, error) {
	s.lastK = k
	return s.passages, s.err
}

type stubDocs struct {
	docs []domain.Document
}

func (s stubDocs) Get(_ context.Context, id string) (domain.Document, error) {
	for _, d := range s.docs {
		if d.ID == id {
			return d, nil
		}
	}
	return domain.Document{}, domain.Errorf(domain.KindDocumentNotFound, "stub", "no %s", id)
}

func (s stubDocs) List(context.Context) ([]domain.Document, error) { return s.docs, nil }

type stubHealth struct{ err error }

func (s stubHealth) Health(context.Context) error { return s.err }

var now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func sampleDocs() stubDocs {
	return stubDocs{docs: []domain.Document{
		{ID: "d2", Filename: "b.md", Text: "newer", ChunkCount: 3, Metadata: domain.DocumentMetadata{Title: "B", IngestedAt: now}},
		{ID: "d1", Filename: "a.pdf", Text: "older", ChunkCount: 2, Metadata: domain.DocumentMetadata{Title: "A", Author: "Ann", IngestedAt: now.Add(-time.Hour)}},
	}}
}

func TestAskHandler(t *testing.T) {
	svc := &stubChat{answer: domain.Answer{Text: "yes [1]", Confidence: 0.8, ConversationID: "c", Citations: []domain.Citation{{ChunkID: "x", Marker: 1}}}}
	_, out, err := makeAskHandler(svc)(context.Background(), nil, AskInput{Question: "why?", DocumentIDs: []string{"d1"}})
	require.NoError(t, err)

	assert.Equal(t, "yes [1]", out.Answer)
	assert.Equal(t, "c", out.ConversationID)
	assert.Len(t, out.Citations, 1)
	assert.Equal(t, []string{"d1"}, svc.lastReq.Filter.DocumentIDs)

	svc.err = domain.Errorf(domain.KindInvalidRequest, "chat", "question is required")
	_, _, err = makeAskHandler(svc)(context.Background(), nil, AskInput{})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Contains(t, err.Error(), "invalid_request")
}

func TestSearchHandler(t *testing.T) {
	svc := &stubChat{}
	_, out, err := makeSearchHandler(svc)(context.Background(), nil, SearchPassagesInput{Query: "anything"})
	require.NoError(t, err)
	assert.Empty(t, out.Results)
	assert.NotEmpty(t, out.Message)
	assert.Equal(t, 5, svc.lastK)

	svc.passages = []domain.RetrievedPassage{{Chunk: domain.Chunk{ID: "c1", DocumentID: "d1", Text: "t", Page: 2}, Score: 0.9, Rank: 1}}
	_, out, err = makeSearchHandler(svc)(context.Background(), nil, SearchPassagesInput{Query: "anything", MaxResults: 3})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, PassageResult{ChunkID: "c1", DocumentID: "d1", Page: 2, Rank: 1, Score: 0.9, Text: "t"}, out.Results[0])
	assert.Equal(t, 3, svc.lastK)
}

func TestDocumentHandlers(t *testing.T) {
	docs := sampleDocs()

	_, list, err := makeListHandler(docs)(context.Background(), nil, ListDocumentsInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, "d2", list.Documents[0].DocumentID)

	_, got, err := makeGetHandler(docs)(context.Background(), nil, GetDocumentInput{DocumentID: "d1", IncludeText: true})
	require.NoError(t, err)
	assert.True(t, got.Found)
	assert.Equal(t, "Ann", got.Author)
	assert.Equal(t, "older", got.Text)

	_, missing, err := makeGetHandler(docs)(context.Background(), nil, GetDocumentInput{DocumentID: "nope"})
	require.NoError(t, err)
	assert.False(t, missing.Found)
}

func TestStatusHandler(t *testing.T) {
	_, out, err := makeStatusHandler(sampleDocs(), stubHealth{err: errors.New("down")})(context.Background(), nil, IndexStatusInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, out.TotalDocs)
	assert.Equal(t, 5, out.TotalChunks)
	assert.Equal(t, "disconnected", out.VectorIndex)
	assert.Equal(t, now.Format(time.RFC3339), out.LastIngestAt)
}

func TestServerListsTools(t *testing.T) {
	ctx := context.Background()
	s := NewServer(&Config{Chat: &stubChat{}, Documents: sampleDocs()})

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	res, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"ask", "search_passages", "list_documents", "get_document", "get_index_status"}, names)
}
