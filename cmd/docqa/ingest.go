package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/bull/docqa/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file-or-directory>...",
	Short: "Ingest local files into the collection",
	Long: `Extracts, chunks, embeds and indexes PDF, plain text and Markdown files.
Directories are walked recursively; files with other extensions are skipped.

Environment variables:
  OPENAI_API_KEY  API key for embeddings (required)
  VECTOR_STORE    qdrant (default) or memory
  QDRANT_HOST     Qdrant hostname (default: localhost)
  QDRANT_PORT     Qdrant gRPC port (default: 6334)
  CATALOG_PATH    SQLite catalog file (default: docqa.db)`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a)

	var files []ingest.File
	for _, arg := range args {
		found, err := collectFiles(arg, a.Extractor.Supported)
		if err != nil {
			return err
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return errors.New("no supported files found (pdf, txt, md)")
	}

	fmt.Printf("Ingesting %d files...\n", len(files))
	result, err := a.Pipeline.IngestBatch(ctx, files)
	if err != nil {
		return fmt.Errorf("ingestion interrupted: %w", err)
	}
	printResult(result, start)
	return nil
}

// collectFiles reads root, or every supported file beneath it when root is a
// directory. An explicitly named file is always read so that its rejection
// is reported.
func collectFiles(root string, supported func(name string) bool) ([]ingest.File, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		data, err := os.ReadFile(root)
		if err != nil {
			return nil, err
		}
		return []ingest.File{{Name: root, Data: data}}, nil
	}

	var files []ingest.File
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !supported(path) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, ingest.File{Name: path, Data: data})
		return nil
	})
	return files, err
}
