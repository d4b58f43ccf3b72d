package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/docqa/internal/chat"
	"github.com/bull/docqa/internal/domain"
)

// makeAskHandler creates the ask tool handler.
func makeAskHandler(svc ChatService) func(
	context.Context, *mcp.CallToolRequest, AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (
		*mcp.CallToolResult, AskOutput, error,
	) {
		answer, err := svc.Ask(ctx, chat.Request{
			Question:       input.Question,
			ConversationID: input.ConversationID,
			TopK:           input.TopK,
			Filter:         domain.Filter{DocumentIDs: input.DocumentIDs},
		})
		if err != nil {
			return nil, AskOutput{}, fmt.Errorf("%s: %w", domain.KindOf(err), err)
		}
		return nil, AskOutput{
			Answer:         answer.Text,
			Citations:      answer.Citations,
			Confidence:     answer.Confidence,
			ConversationID: answer.ConversationID,
			Degraded:       answer.Degraded,
		}, nil
	}
}

// makeSearchHandler creates the search_passages tool handler. Passages are
// returned ranked, one per chunk, without generating an answer.
func makeSearchHandler(svc ChatService) func(
	context.Context, *mcp.CallToolRequest, SearchPassagesInput,
) (*mcp.CallToolResult, SearchPassagesOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchPassagesInput) (
		*mcp.CallToolResult, SearchPassagesOutput, error,
	) {
		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = 5
		}

		passages, err := svc.Search(ctx, input.Query, maxResults, domain.Filter{DocumentIDs: input.DocumentIDs})
		if err != nil {
			return nil, SearchPassagesOutput{}, fmt.Errorf("%s: %w", domain.KindOf(err), err)
		}

		if len(passages) == 0 {
			return nil, SearchPassagesOutput{
				Results: []PassageResult{},
				Message: "No matching passages found. Try broader search terms.",
			}, nil
		}

		results := make([]PassageResult, len(passages))
		for i, p := range passages {
			results[i] = PassageResult{
				ChunkID:    p.Chunk.ID,
				DocumentID: p.Chunk.DocumentID,
				Title:      p.Chunk.Title,
				Page:       p.Chunk.Page,
				Rank:       p.Rank,
				Score:      p.Score,
				Text:       p.Chunk.Text,
			}
		}
		return nil, SearchPassagesOutput{Results: results}, nil
	}
}

// makeListHandler creates the list_documents tool handler.
func makeListHandler(docs Documents) func(
	context.Context, *mcp.CallToolRequest, ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListDocumentsInput) (
		*mcp.CallToolResult, ListDocumentsOutput, error,
	) {
		list, err := docs.List(ctx)
		if err != nil {
			return nil, ListDocumentsOutput{}, fmt.Errorf("failed to list documents: %w", err)
		}
		out := make([]DocumentSummary, len(list))
		for i, d := range list {
			out[i] = summarize(d)
		}
		return nil, ListDocumentsOutput{Documents: out, Count: len(out)}, nil
	}
}

// makeGetHandler creates the get_document tool handler. Unknown ids are a
// normal result with Found false, not a tool error.
func makeGetHandler(docs Documents) func(
	context.Context, *mcp.CallToolRequest, GetDocumentInput,
) (*mcp.CallToolResult, GetDocumentOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GetDocumentInput) (
		*mcp.CallToolResult, GetDocumentOutput, error,
	) {
		doc, err := docs.Get(ctx, input.DocumentID)
		if err != nil {
			if errors.Is(err, domain.ErrDocumentNotFound) {
				return nil, GetDocumentOutput{Found: false}, nil
			}
			return nil, GetDocumentOutput{}, fmt.Errorf("failed to fetch document: %w", err)
		}

		summary := summarize(doc)
		out := GetDocumentOutput{Found: true, Document: &summary, Author: doc.Metadata.Author}
		if input.IncludeText {
			out.Text = doc.Text
		}
		return nil, out, nil
	}
}

// makeStatusHandler creates the get_index_status tool handler.
func makeStatusHandler(docs Documents, index HealthChecker) func(
	context.Context, *mcp.CallToolRequest, IndexStatusInput,
) (*mcp.CallToolResult, IndexStatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IndexStatusInput) (
		*mcp.CallToolResult, IndexStatusOutput, error,
	) {
		list, err := docs.List(ctx)
		if err != nil {
			return nil, IndexStatusOutput{}, fmt.Errorf("failed to list documents: %w", err)
		}

		out := IndexStatusOutput{TotalDocs: len(list), VectorIndex: "connected"}
		for _, d := range list {
			out.TotalChunks += d.ChunkCount
		}
		// List is newest first.
		if len(list) > 0 {
			out.LastIngestAt = list[0].Metadata.IngestedAt.Format(time.RFC3339)
		}

		if index != nil {
			hctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := index.Health(hctx); err != nil {
				out.VectorIndex = "disconnected"
			}
		}
		return nil, out, nil
	}
}
