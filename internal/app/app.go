// Package app assembles the docqa services from a Config. Both binaries use
// it so that the server and the CLI see the same index, catalog and models.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bull/docqa/internal/api"
	"github.com/bull/docqa/internal/catalog"
	"github.com/bull/docqa/internal/chat"
	"github.com/bull/docqa/internal/chunker"
	"github.com/bull/docqa/internal/citation"
	"github.com/bull/docqa/internal/config"
	"github.com/bull/docqa/internal/conversation"
	"github.com/bull/docqa/internal/embedding"
	"github.com/bull/docqa/internal/extract"
	"github.com/bull/docqa/internal/generation"
	"github.com/bull/docqa/internal/ingest"
	"github.com/bull/docqa/internal/logger"
	mcpserver "github.com/bull/docqa/internal/mcp"
	"github.com/bull/docqa/internal/metadata"
	"github.com/bull/docqa/internal/prompt"
	"github.com/bull/docqa/internal/retriever"
	"github.com/bull/docqa/internal/storage"
)

// Version is reported by the MCP server. Overridden at link time.
var Version = "dev"

// App holds the wired services. Close releases every connection it opened.
type App struct {
	Config        *config.Config
	Log           *logger.Logger
	Index         storage.Index
	Catalog       catalog.Catalog
	Conversations conversation.Store
	Extractor     *extract.Registry
	Pipeline      *ingest.Pipeline
	Chat          *chat.Service
	MCP           *mcpserver.Server

	closers []func() error
}

type overrides struct {
	embedder  ingest.Embedder
	generator generation.Generator
}

// Option replaces a model-backed dependency, mostly for tests and offline use.
type Option func(*overrides)

// WithEmbedder uses e instead of the OpenAI embeddings endpoint.
func WithEmbedder(e ingest.Embedder) Option {
	return func(o *overrides) { o.embedder = e }
}

// WithGenerator uses g instead of the OpenAI chat completions endpoint.
func WithGenerator(g generation.Generator) Option {
	return func(o *overrides) { o.generator = g }
}

// New builds every service from cfg. On error, anything already opened is
// closed before returning.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts ...Option) (_ *App, err error) {
	if log == nil {
		log = logger.Nop()
	}
	var o overrides
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// The OpenAI client is only needed when a model dependency is not
	// overridden or summaries are enabled.
	var client *embedding.Client
	if o.embedder == nil || o.generator == nil || cfg.Ingest.Summarize {
		client, err = embedding.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
		}
	}
	embedder := o.embedder
	if embedder == nil {
		embedder = embedding.NewEmbedder(client, embedding.Options{
			Model:             cfg.OpenAI.EmbeddingModel,
			Dimension:         cfg.OpenAI.EmbeddingDimension,
			BatchSize:         cfg.OpenAI.EmbeddingBatchSize,
			RequestsPerSecond: cfg.OpenAI.EmbeddingRPS,
		})
	}
	generator := o.generator
	if generator == nil {
		generator = generation.NewOpenAI(client.Client(), generation.Options{
			Model:       cfg.OpenAI.ChatModel,
			Temperature: cfg.OpenAI.Temperature,
			MaxTokens:   cfg.OpenAI.MaxTokens,
		})
	}
	var summarizer ingest.Summarizer
	if cfg.Ingest.Summarize {
		summarizer = metadata.NewGenerator(client.Client(), cfg.OpenAI.ChatModel, 0, log)
	}

	if err := a.openIndex(ctx); err != nil {
		return nil, err
	}
	if err := a.openCatalog(); err != nil {
		return nil, err
	}
	if err := a.openConversations(ctx); err != nil {
		return nil, err
	}

	pdf := extract.NewPDF(nil, cfg.Ingest.PdfToTextBin)
	if err := pdf.Available(); err != nil {
		log.Warn("PDF ingestion will fail until pdftotext is installed", "path", cfg.Ingest.PdfToTextBin)
	}
	a.Extractor = extract.NewRegistry(pdf)

	a.Pipeline = ingest.NewPipeline(
		a.Extractor,
		chunker.New(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap),
		embedder,
		a.Index,
		a.Catalog,
		summarizer,
		log,
		ingest.Options{
			Concurrency:    cfg.Ingest.Concurrency,
			Timeout:        cfg.Ingest.Timeout,
			MaxUploadBytes: cfg.MaxUploadBytes(),
		},
	)

	r := retriever.New(embedder, a.Index, retriever.Options{
		MinScore:       cfg.Retrieval.MinScore,
		DedupThreshold: cfg.Retrieval.DedupThreshold,
	})
	a.Chat = chat.NewService(
		r,
		prompt.Assembler{Budget: cfg.Retrieval.PromptBudget},
		generator,
		citation.Linker{MinOverlap: cfg.Retrieval.CitationMinOverlap},
		a.Conversations,
		log,
		chat.Options{
			TopK:         cfg.Retrieval.TopK,
			HistoryTurns: cfg.Retrieval.HistoryTurns,
			Fallback:     cfg.Retrieval.Fallback,
			QueryTimeout: cfg.Server.QueryTimeout,
		},
	)

	a.MCP = mcpserver.NewServer(&mcpserver.Config{
		Chat:      a.Chat,
		Documents: a.Pipeline,
		Index:     a.Index,
		Version:   Version,
	})
	return a, nil
}

func (a *App) openIndex(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Store.VectorStore {
	case "memory":
		a.Index = storage.NewMemoryIndex(cfg.OpenAI.EmbeddingDimension)
		return nil
	default:
		a.Log.Info("connecting to Qdrant", "host", cfg.Qdrant.Host, "port", cfg.Qdrant.Port)
		idx, err := storage.NewQdrantIndex(ctx, cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Qdrant.Collection, cfg.OpenAI.EmbeddingDimension)
		if err != nil {
			return fmt.Errorf("failed to connect to Qdrant: %w", err)
		}
		a.closers = append(a.closers, idx.Close)
		if err := idx.EnsureCollection(ctx); err != nil {
			return fmt.Errorf("failed to ensure collection: %w", err)
		}
		a.Index = idx
		return nil
	}
}

func (a *App) openCatalog() error {
	db, err := catalog.OpenSQLite(a.Config.Store.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	a.Catalog = db
	return nil
}

func (a *App) openConversations(ctx context.Context) error {
	cfg := a.Config.Store
	switch cfg.ConversationStore {
	case "redis":
		rs, err := conversation.NewRedisStore(ctx, cfg.RedisAddr, cfg.ConversationTTL)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		a.closers = append(a.closers, rs.Close)
		a.Conversations = rs
	default:
		a.Conversations = conversation.NewMemoryStore()
	}
	return nil
}

// Router returns the HTTP API with the MCP endpoint mounted at /mcp.
func (a *App) Router() *gin.Engine {
	return api.NewRouter(api.RouterConfig{
		Chat:           a.Chat,
		Documents:      a.Pipeline,
		Health:         a.Index,
		MCP:            mcpserver.NewHTTPHandler(a.MCP, &mcpserver.HTTPHandlerOptions{Stateless: true}),
		Landing:        mcpserver.NewLandingHandler(),
		Log:            a.Log,
		MaxUploadBytes: a.Config.MaxUploadBytes(),
		AllowOrigins:   a.Config.Server.AllowOrigins,
	})
}

// HTTPServer wraps Router in an http.Server listening on the configured port.
func (a *App) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              "0.0.0.0:" + a.Config.Server.Port,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
