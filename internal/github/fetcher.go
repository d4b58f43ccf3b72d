package github

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/go-github/v81/github"
)

// FetchedDoc is a file downloaded from a repository.
type FetchedDoc struct {
	Path string // relative to the fetcher's base path
	Data []byte
	SHA  string // Git blob SHA
	URL  string // raw download URL
}

// Source names a directory in a repository, optionally at a ref.
type Source struct {
	Owner    string
	Repo     string
	BasePath string
	Ref      string
}

// ParseSource parses "owner/repo[/path][@ref]".
func ParseSource(s string) (Source, error) {
	var src Source
	s, src.Ref, _ = strings.Cut(s, "@")
	parts := strings.SplitN(strings.Trim(s, "/"), "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Source{}, fmt.Errorf("invalid repository %q: want owner/repo[/path][@ref]", s)
	}
	src.Owner, src.Repo = parts[0], parts[1]
	if len(parts) == 3 {
		src.BasePath = parts[2]
	}
	return src, nil
}

func (s Source) String() string {
	out := path.Join(s.Owner, s.Repo, s.BasePath)
	if s.Ref != "" {
		out += "@" + s.Ref
	}
	return out
}

// Fetcher lists and downloads files below a repository directory.
type Fetcher struct {
	client *Client
	src    Source
	// accept filters files by name; nil accepts everything.
	accept func(name string) bool
}

// NewFetcher creates a fetcher. accept selects which files ListDocs returns.
func NewFetcher(client *Client, src Source, accept func(name string) bool) *Fetcher {
	return &Fetcher{client: client, src: src, accept: accept}
}

func (f *Fetcher) opts() *github.RepositoryContentGetOptions {
	if f.src.Ref == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: f.src.Ref}
}

// ListDocs recursively lists accepted files, relative to the base path.
func (f *Fetcher) ListDocs(ctx context.Context) ([]string, error) {
	return f.listDocsRecursive(ctx, f.src.BasePath, "")
}

func (f *Fetcher) listDocsRecursive(ctx context.Context, fullPath, relativePath string) ([]string, error) {
	var docs []string

	_, dirContents, _, err := f.client.Repositories.GetContents(ctx, f.src.Owner, f.src.Repo, fullPath, f.opts())
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", fullPath, err)
	}

	for _, item := range dirContents {
		name := item.GetName()
		if name == "" {
			continue
		}
		itemRelPath := path.Join(relativePath, name)

		switch item.GetType() {
		case "file":
			if f.accept == nil || f.accept(name) {
				docs = append(docs, itemRelPath)
			}
		case "dir":
			subDocs, err := f.listDocsRecursive(ctx, path.Join(fullPath, name), itemRelPath)
			if err != nil {
				return nil, err
			}
			docs = append(docs, subDocs...)
		}
	}

	return docs, nil
}

// FetchDoc downloads one file listed by ListDocs.
func (f *Fetcher) FetchDoc(ctx context.Context, relativePath string) (*FetchedDoc, error) {
	fullPath := path.Join(f.src.BasePath, relativePath)

	fileContent, _, _, err := f.client.Repositories.GetContents(ctx, f.src.Owner, f.src.Repo, fullPath, f.opts())
	if err != nil {
		return nil, fmt.Errorf("failed to get content of %s: %w", fullPath, err)
	}
	if fileContent == nil {
		return nil, fmt.Errorf("%s is a directory", fullPath)
	}

	content, err := fileContent.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode content of %s: %w", fullPath, err)
	}

	return &FetchedDoc{
		Path: relativePath,
		Data: []byte(content),
		SHA:  fileContent.GetSHA(),
		URL:  fileContent.GetDownloadURL(),
	}, nil
}

// LatestCommitSHA returns the SHA of the most recent commit touching the base path.
func (f *Fetcher) LatestCommitSHA(ctx context.Context) (string, error) {
	commits, _, err := f.client.Repositories.ListCommits(ctx, f.src.Owner, f.src.Repo,
		&github.CommitsListOptions{
			SHA:         f.src.Ref,
			Path:        f.src.BasePath,
			ListOptions: github.ListOptions{PerPage: 1},
		})
	if err != nil {
		return "", fmt.Errorf("failed to get latest commit: %w", err)
	}
	if len(commits) == 0 {
		return "", fmt.Errorf("no commits found for path %s", f.src.BasePath)
	}
	return commits[0].GetSHA(), nil
}
