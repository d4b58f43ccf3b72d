package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bull/docqa/internal/domain"
	ghclient "github.com/bull/docqa/internal/github"
	"github.com/bull/docqa/internal/ingest"
)

var syncCmd = &cobra.Command{
	Use:   "sync <owner/repo[/path][@ref]>",
	Short: "Ingest documents from a GitHub repository",
	Long: `Fetches every PDF, plain text and Markdown file under a repository path
and ingests it. Documents are added alongside the existing collection.

Environment variables:
  GITHUB_TOKEN    GitHub token for higher rate limits (optional)
  OPENAI_API_KEY  API key for embeddings (required)`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	src, err := ghclient.ParseSource(args[0])
	if err != nil {
		return err
	}

	fmt.Println("Starting sync...")
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a)

	gh, err := ghclient.NewClient(os.Getenv("GITHUB_TOKEN"))
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}
	fetcher := ghclient.NewFetcher(gh, src, a.Extractor.Supported)

	sha, err := fetcher.LatestCommitSHA(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Fetching documents from %s (commit %s)...\n", src, shortSHA(sha))

	paths, err := fetcher.ListDocs(ctx)
	if err != nil {
		return err
	}

	files := make([]ingest.File, 0, len(paths))
	var fetchFailed []ingest.FailedDoc
	for _, p := range paths {
		doc, err := fetcher.FetchDoc(ctx, p)
		if err != nil {
			a.Log.Warn("failed to fetch document", "path", p, "error", err)
			fetchFailed = append(fetchFailed, ingest.FailedDoc{Path: p, Kind: domain.KindOf(err), Reason: err.Error()})
			continue
		}
		files = append(files, ingest.File{Name: doc.Path, Data: doc.Data})
	}

	result, err := a.Pipeline.IngestBatch(ctx, files)
	if err != nil {
		return fmt.Errorf("ingestion interrupted: %w", err)
	}
	result.TotalDocs += len(fetchFailed)
	result.FailedDocs = append(fetchFailed, result.FailedDocs...)

	printResult(result, start)
	fmt.Printf("  Commit: %s\n", sha)
	return nil
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
