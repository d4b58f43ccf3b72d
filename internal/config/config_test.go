package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Retrieval.ChunkSize)
	assert.Equal(t, 200, cfg.Retrieval.ChunkOverlap)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, FallbackFail, cfg.Retrieval.Fallback)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docqa.yaml")
	yaml := `
qdrant:
  host: qdrant.internal
  port: 7000
retrieval:
  top_k: 8
  fallback: history
server:
  query_timeout: 15s
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("QDRANT_PORT", "6334")
	t.Setenv("INGEST_TIMEOUT", "45s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "qdrant.internal", cfg.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Qdrant.Port, "env overrides file")
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.Equal(t, FallbackHistory, cfg.Retrieval.Fallback)
	assert.Equal(t, 15*time.Second, cfg.Server.QueryTimeout)
	assert.Equal(t, 45*time.Second, cfg.Ingest.Timeout)
	assert.Equal(t, 200, cfg.Retrieval.ChunkOverlap, "unset keys keep defaults")
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("TOP_K", "many")
	_, err := Load("")
	assert.ErrorContains(t, err, "TOP_K")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Retrieval.ChunkOverlap = cfg.Retrieval.ChunkSize
	cfg.Retrieval.Fallback = "guess"
	cfg.Store.VectorStore = "faiss"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "CHUNK_OVERLAP")
	assert.ErrorContains(t, err, "RETRIEVAL_FALLBACK")
	assert.ErrorContains(t, err, "VECTOR_STORE")
}

func TestValidateOverlapBelowHalfChunk(t *testing.T) {
	cfg := Default()
	cfg.Retrieval.ChunkSize = 1000

	cfg.Retrieval.ChunkOverlap = 600
	assert.ErrorContains(t, cfg.Validate(), "CHUNK_OVERLAP")

	cfg.Retrieval.ChunkOverlap = 500
	assert.ErrorContains(t, cfg.Validate(), "CHUNK_OVERLAP")

	cfg.Retrieval.ChunkOverlap = 499
	assert.NoError(t, cfg.Validate())
}
