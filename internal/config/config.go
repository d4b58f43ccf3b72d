// Package config loads docqa settings from an optional YAML file, then the
// environment, then defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Retrieval fallback policies.
const (
	FallbackFail    = "fail"
	FallbackHistory = "history"
)

type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
}

type OpenAIConfig struct {
	APIKey             string  `yaml:"api_key"`
	BaseURL            string  `yaml:"base_url"`
	EmbeddingModel     string  `yaml:"embedding_model"`
	EmbeddingDimension int     `yaml:"embedding_dimension"`
	EmbeddingBatchSize int     `yaml:"embedding_batch_size"`
	EmbeddingRPS       float64 `yaml:"embedding_rps"`
	ChatModel          string  `yaml:"chat_model"`
	Temperature        float64 `yaml:"temperature"`
	MaxTokens          int     `yaml:"max_tokens"`
}

type RetrievalConfig struct {
	ChunkSize          int     `yaml:"chunk_size"`
	ChunkOverlap       int     `yaml:"chunk_overlap"`
	TopK               int     `yaml:"top_k"`
	MinScore           float64 `yaml:"min_score"`
	DedupThreshold     float64 `yaml:"dedup_threshold"`
	PromptBudget       int     `yaml:"prompt_budget"`
	HistoryTurns       int     `yaml:"history_turns"`
	CitationMinOverlap float64 `yaml:"citation_min_overlap"`
	Fallback           string  `yaml:"fallback"`
}

type IngestConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	Concurrency  int           `yaml:"concurrency"`
	MaxUploadMB  int           `yaml:"max_upload_mb"`
	Summarize    bool          `yaml:"summarize"`
	PdfToTextBin string        `yaml:"pdftotext_path"`
}

type StoreConfig struct {
	VectorStore       string        `yaml:"vector_store"`
	CatalogPath       string        `yaml:"catalog_path"`
	ConversationStore string        `yaml:"conversation_store"`
	RedisAddr         string        `yaml:"redis_addr"`
	ConversationTTL   time.Duration `yaml:"conversation_ttl"`
}

type ServerConfig struct {
	Port         string        `yaml:"port"`
	Mode         bool          `yaml:"server_mode"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	LogMode      string        `yaml:"log_mode"`
	// AllowOrigins lists CORS origins; empty allows any origin.
	AllowOrigins []string `yaml:"allow_origins"`
}

// Config is the root configuration.
type Config struct {
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Store     StoreConfig     `yaml:"store"`
	Server    ServerConfig    `yaml:"server"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Qdrant: QdrantConfig{Host: "localhost", Port: 6334, Collection: "docqa_chunks"},
		OpenAI: OpenAIConfig{
			EmbeddingModel:     "text-embedding-3-small",
			EmbeddingDimension: 1536,
			EmbeddingBatchSize: 100,
			EmbeddingRPS:       5,
			ChatModel:          "gpt-4o-mini",
			Temperature:        0.1,
			MaxTokens:          800,
		},
		Retrieval: RetrievalConfig{
			ChunkSize:          1000,
			ChunkOverlap:       200,
			TopK:               5,
			MinScore:           0.2,
			DedupThreshold:     0.8,
			PromptBudget:       12000,
			HistoryTurns:       6,
			CitationMinOverlap: 0.3,
			Fallback:           FallbackFail,
		},
		Ingest: IngestConfig{
			Timeout:      2 * time.Minute,
			Concurrency:  4,
			MaxUploadMB:  10,
			PdfToTextBin: "pdftotext",
		},
		Store: StoreConfig{
			VectorStore:       "qdrant",
			CatalogPath:       "docqa.db",
			ConversationStore: "memory",
			RedisAddr:         "localhost:6379",
			ConversationTTL:   24 * time.Hour,
		},
		Server: ServerConfig{
			Port:         "8080",
			QueryTimeout: 60 * time.Second,
			LogMode:      "dev",
		},
	}
}

// Load reads path (if non-empty and present), applies environment overrides
// and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.Retrieval.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.Retrieval.ChunkSize))
	}
	// The chunker clamps larger overlaps, so reject them here instead.
	if c.Retrieval.ChunkOverlap < 0 || c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize/2 {
		errs = append(errs, fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE/2), got %d", c.Retrieval.ChunkOverlap))
	}
	if c.Retrieval.TopK <= 0 {
		errs = append(errs, fmt.Errorf("TOP_K must be positive, got %d", c.Retrieval.TopK))
	}
	if c.Retrieval.MinScore < 0 || c.Retrieval.MinScore > 1 {
		errs = append(errs, fmt.Errorf("MIN_SCORE must be in [0,1], got %v", c.Retrieval.MinScore))
	}
	if c.Retrieval.DedupThreshold <= 0 || c.Retrieval.DedupThreshold > 1 {
		errs = append(errs, fmt.Errorf("DEDUP_THRESHOLD must be in (0,1], got %v", c.Retrieval.DedupThreshold))
	}
	switch c.Retrieval.Fallback {
	case FallbackFail, FallbackHistory:
	default:
		errs = append(errs, fmt.Errorf("RETRIEVAL_FALLBACK must be %q or %q, got %q", FallbackFail, FallbackHistory, c.Retrieval.Fallback))
	}
	switch c.Store.VectorStore {
	case "qdrant", "memory":
	default:
		errs = append(errs, fmt.Errorf("VECTOR_STORE must be qdrant or memory, got %q", c.Store.VectorStore))
	}
	switch c.Store.ConversationStore {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("CONVERSATION_STORE must be memory or redis, got %q", c.Store.ConversationStore))
	}
	if c.Ingest.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("INGEST_CONCURRENCY must be positive, got %d", c.Ingest.Concurrency))
	}
	if c.Ingest.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.Ingest.MaxUploadMB))
	}
	if c.OpenAI.EmbeddingDimension <= 0 {
		errs = append(errs, fmt.Errorf("EMBEDDING_DIMENSION must be positive, got %d", c.OpenAI.EmbeddingDimension))
	}
	if c.Server.QueryTimeout <= 0 || c.Ingest.Timeout <= 0 {
		errs = append(errs, errors.New("QUERY_TIMEOUT and INGEST_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// MaxUploadBytes is MaxUploadMB in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Ingest.MaxUploadMB) << 20
}

func (c *Config) applyEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = i
		}
	}
	float := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("QDRANT_HOST", &c.Qdrant.Host)
	num("QDRANT_PORT", &c.Qdrant.Port)
	str("QDRANT_COLLECTION", &c.Qdrant.Collection)

	str("OPENAI_API_KEY", &c.OpenAI.APIKey)
	str("OPENAI_BASE_URL", &c.OpenAI.BaseURL)
	str("EMBEDDING_MODEL", &c.OpenAI.EmbeddingModel)
	num("EMBEDDING_DIMENSION", &c.OpenAI.EmbeddingDimension)
	num("EMBEDDING_BATCH_SIZE", &c.OpenAI.EmbeddingBatchSize)
	float("EMBEDDING_RPS", &c.OpenAI.EmbeddingRPS)
	str("CHAT_MODEL", &c.OpenAI.ChatModel)
	float("CHAT_TEMPERATURE", &c.OpenAI.Temperature)
	num("CHAT_MAX_TOKENS", &c.OpenAI.MaxTokens)

	num("CHUNK_SIZE", &c.Retrieval.ChunkSize)
	num("CHUNK_OVERLAP", &c.Retrieval.ChunkOverlap)
	num("TOP_K", &c.Retrieval.TopK)
	float("MIN_SCORE", &c.Retrieval.MinScore)
	float("DEDUP_THRESHOLD", &c.Retrieval.DedupThreshold)
	num("PROMPT_BUDGET", &c.Retrieval.PromptBudget)
	num("HISTORY_TURNS", &c.Retrieval.HistoryTurns)
	float("CITATION_MIN_OVERLAP", &c.Retrieval.CitationMinOverlap)
	str("RETRIEVAL_FALLBACK", &c.Retrieval.Fallback)
	c.Retrieval.Fallback = strings.ToLower(c.Retrieval.Fallback)

	dur("INGEST_TIMEOUT", &c.Ingest.Timeout)
	num("INGEST_CONCURRENCY", &c.Ingest.Concurrency)
	num("MAX_UPLOAD_MB", &c.Ingest.MaxUploadMB)
	boolean("SUMMARIZE_DOCUMENTS", &c.Ingest.Summarize)
	str("PDFTOTEXT_PATH", &c.Ingest.PdfToTextBin)

	str("VECTOR_STORE", &c.Store.VectorStore)
	str("CATALOG_PATH", &c.Store.CatalogPath)
	str("CONVERSATION_STORE", &c.Store.ConversationStore)
	str("REDIS_ADDR", &c.Store.RedisAddr)
	dur("CONVERSATION_TTL", &c.Store.ConversationTTL)

	str("PORT", &c.Server.Port)
	boolean("SERVER_MODE", &c.Server.Mode)
	dur("QUERY_TIMEOUT", &c.Server.QueryTimeout)
	str("LOG_MODE", &c.Server.LogMode)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.AllowOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.AllowOrigins = append(c.Server.AllowOrigins, o)
			}
		}
	}

	return errors.Join(errs...)
}
