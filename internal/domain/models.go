// Package domain holds the data model shared by ingestion and question answering.
package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Source types reported by the extractors.
const (
	SourcePDF      = "pdf"
	SourceText     = "text"
	SourceMarkdown = "markdown"
)

// Document is an ingested file. Documents are immutable; re-ingesting a file
// creates a new document and the old one must be deleted explicitly.
type Document struct {
	ID         string           `json:"id"`
	Filename   string           `json:"filename"`
	Text       string           `json:"-"`
	Metadata   DocumentMetadata `json:"metadata"`
	ChunkCount int              `json:"chunk_count"`
}

// DocumentMetadata is derived during extraction and ingestion.
type DocumentMetadata struct {
	Title      string    `json:"title"`
	Author     string    `json:"author,omitempty"`
	PageCount  int       `json:"page_count"`
	SourceType string    `json:"source_type"`
	IngestedAt time.Time `json:"ingested_at"`
	Summary    string    `json:"summary,omitempty"`
	Keywords   []string  `json:"keywords,omitempty"`
}

// Chunk is a bounded span of a document's text, embedded and indexed on its own.
// Title, SourceType and IngestedAt are copied from the parent document so the
// vector index can filter and rank without a catalog lookup.
type Chunk struct {
	ID         string
	DocumentID string
	Ordinal    int // position within the document (0, 1, 2...)
	Start      int // byte offset of Text within the document text
	Text       string
	Length     int
	Page       int // 1-based, 0 when unknown
	Title      string
	SourceType string
	IngestedAt time.Time
	Embedding  []float32
}

// End returns the byte offset one past the chunk's last byte.
func (c Chunk) End() int {
	return c.Start + c.Length
}

// ChunkID derives a stable chunk id from its document and ordinal so that
// re-upserting the same document overwrites rather than duplicates points.
func ChunkID(documentID string, ordinal int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(documentID+":"+strconv.Itoa(ordinal))).String()
}

// RetrievedPassage is a chunk returned for a query. Score is normalised to [0,1].
type RetrievedPassage struct {
	Chunk Chunk
	Score float64
	Rank  int
}

// Filter restricts retrieval. Zero values mean "no restriction".
type Filter struct {
	DocumentIDs   []string
	SourceTypes   []string
	IngestedAfter time.Time
}

// Matches reports whether a chunk passes the filter.
func (f Filter) Matches(c Chunk) bool {
	if len(f.DocumentIDs) > 0 && !contains(f.DocumentIDs, c.DocumentID) {
		return false
	}
	if len(f.SourceTypes) > 0 && !contains(f.SourceTypes, c.SourceType) {
		return false
	}
	if !f.IngestedAfter.IsZero() && c.IngestedAt.Before(f.IngestedAfter) {
		return false
	}
	return true
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of a conversation.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Citation points from an answer to the chunk that supports it.
type Citation struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Marker     int     `json:"marker"`
	Title      string  `json:"title,omitempty"`
	Excerpt    string  `json:"excerpt"`
	Page       int     `json:"page,omitempty"`
	Score      float64 `json:"score"`
}

// Answer is the result of a chat request.
type Answer struct {
	Text           string     `json:"answer"`
	Citations      []Citation `json:"citations"`
	Confidence     float64    `json:"confidence"`
	ConversationID string     `json:"conversation_id"`
	// Incomplete marks a partial answer cut short by a generation failure.
	Incomplete bool `json:"incomplete,omitempty"`
	// Degraded marks an answer produced without retrieval because the
	// retrieval path was unavailable and the fallback policy allowed it.
	Degraded bool `json:"degraded,omitempty"`
}
