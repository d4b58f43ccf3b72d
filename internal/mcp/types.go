// Package mcp exposes the document collection as Model Context Protocol tools.
package mcp

import (
	"time"

	"github.com/bull/docqa/internal/domain"
)

// AskInput defines the input parameters for the ask tool.
type AskInput struct {
	Question       string   `json:"question" jsonschema:"The question to answer from the document collection"`
	ConversationID string   `json:"conversation_id,omitempty" jsonschema:"Continue an earlier conversation; a new id is returned when omitted"`
	TopK           int      `json:"top_k,omitempty" jsonschema:"Number of passages to ground the answer on (default 5)"`
	DocumentIDs    []string `json:"document_ids,omitempty" jsonschema:"Restrict the answer to these documents"`
}

// AskOutput is a grounded answer with citations.
type AskOutput struct {
	Answer         string            `json:"answer"`
	Citations      []domain.Citation `json:"citations"`
	Confidence     float64           `json:"confidence"`
	ConversationID string            `json:"conversation_id"`
	// Degraded is set when retrieval was unavailable and the answer came
	// from conversation history alone.
	Degraded bool `json:"degraded,omitempty"`
}

// SearchPassagesInput defines the input parameters for the search_passages tool.
type SearchPassagesInput struct {
	Query       string   `json:"query" jsonschema:"The semantic search query"`
	MaxResults  int      `json:"max_results,omitempty" jsonschema:"Maximum number of passages to return (default 5)"`
	DocumentIDs []string `json:"document_ids,omitempty" jsonschema:"Restrict the search to these documents"`
}

// SearchPassagesOutput contains ranked passages.
type SearchPassagesOutput struct {
	Results []PassageResult `json:"results"`
	// Message provides informational context (e.g., "No matching passages found").
	Message string `json:"message,omitempty"`
}

// PassageResult is one retrieved passage.
type PassageResult struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Page       int     `json:"page,omitempty"`
	Rank       int     `json:"rank"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

// ListDocumentsInput takes no parameters.
type ListDocumentsInput struct{}

// ListDocumentsOutput lists every ingested document.
type ListDocumentsOutput struct {
	Documents []DocumentSummary `json:"documents"`
	Count     int               `json:"count"`
}

// DocumentSummary describes a document without its text.
type DocumentSummary struct {
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	Title      string    `json:"title"`
	SourceType string    `json:"source_type"`
	PageCount  int       `json:"page_count"`
	ChunkCount int       `json:"chunk_count"`
	Summary    string    `json:"summary,omitempty"`
	Keywords   []string  `json:"keywords,omitempty"`
	IngestedAt time.Time `json:"ingested_at"`
}

// GetDocumentInput defines the input parameters for the get_document tool.
type GetDocumentInput struct {
	DocumentID  string `json:"document_id" jsonschema:"The id returned by list_documents or search_passages"`
	IncludeText bool   `json:"include_text,omitempty" jsonschema:"Return the full extracted text"`
}

// GetDocumentOutput contains the document, if found.
type GetDocumentOutput struct {
	Found    bool             `json:"found"`
	Document *DocumentSummary `json:"document,omitempty"`
	Author   string           `json:"author,omitempty"`
	Text     string           `json:"text,omitempty"`
}

// IndexStatusInput takes no parameters.
type IndexStatusInput struct{}

// IndexStatusOutput summarises the collection.
type IndexStatusOutput struct {
	TotalDocs    int    `json:"total_docs"`
	TotalChunks  int    `json:"total_chunks"`
	VectorIndex  string `json:"vector_index"`
	LastIngestAt string `json:"last_ingest_at,omitempty"`
}

func summarize(d domain.Document) DocumentSummary {
	return DocumentSummary{
		DocumentID: d.ID,
		Filename:   d.Filename,
		Title:      d.Metadata.Title,
		SourceType: d.Metadata.SourceType,
		PageCount:  d.Metadata.PageCount,
		ChunkCount: d.ChunkCount,
		Summary:    d.Metadata.Summary,
		Keywords:   d.Metadata.Keywords,
		IngestedAt: d.Metadata.IngestedAt,
	}
}
