package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/docqa/internal/chat"
	"github.com/bull/docqa/internal/domain"
)

// ChatService answers questions and searches passages.
type ChatService interface {
	Ask(ctx context.Context, req chat.Request) (domain.Answer, error)
	Search(ctx context.Context, query string, k int, filter domain.Filter) ([]domain.RetrievedPassage, error)
}

// Documents reads the document catalog.
type Documents interface {
	Get(ctx context.Context, id string) (domain.Document, error)
	List(ctx context.Context) ([]domain.Document, error)
}

// HealthChecker reports vector index connectivity.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
}

// Config holds server dependencies. Index is optional.
type Config struct {
	Chat      ChatService
	Documents Documents
	Index     HealthChecker
	Version   string
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	server := mcp.NewServer(&mcp.Implementation{Name: "docqa", Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question using only the ingested document collection. Returns the answer with numbered citations to the supporting passages and a confidence score. Pass conversation_id to ask follow-up questions.",
	}, makeAskHandler(cfg.Chat))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_passages",
		Description: "Semantic search over the document collection. Returns ranked passages with their document ids, without generating an answer.",
	}, makeSearchHandler(cfg.Chat))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List all ingested documents with their metadata.",
	}, makeListHandler(cfg.Documents))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_document",
		Description: "Retrieve a document's metadata by id, optionally with its full extracted text.",
	}, makeGetHandler(cfg.Documents))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_index_status",
		Description: "Get document and chunk counts, the time of the latest ingestion and vector index connectivity.",
	}, makeStatusHandler(cfg.Documents, cfg.Index))

	return &Server{server: server}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
