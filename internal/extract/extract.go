// Package extract turns uploaded files into plain text plus metadata.
package extract

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bull/docqa/internal/domain"
)

// Result is the extracted text of one file.
type Result struct {
	Text       string
	Title      string
	Author     string
	PageCount  int
	SourceType string
	// PageStarts holds the byte offset in Text where each page begins.
	// Empty when the format has no pages.
	PageStarts []int
}

// PageAt returns the 1-based page containing offset, or 0 without page data.
func (r *Result) PageAt(offset int) int {
	if len(r.PageStarts) == 0 {
		return 0
	}
	return sort.Search(len(r.PageStarts), func(i int) bool { return r.PageStarts[i] > offset })
}

// Extractor handles one family of formats.
type Extractor interface {
	Extract(ctx context.Context, filename string, data []byte) (*Result, error)
}

// Registry picks an extractor by file extension.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry wires the plain-text, markdown and PDF extractors.
func NewRegistry(pdf *PDF) *Registry {
	text, md := PlainText{}, NewMarkdown()
	return &Registry{byExt: map[string]Extractor{
		".txt":      text,
		".text":     text,
		".md":       md,
		".markdown": md,
		".pdf":      pdf,
	}}
}

// Supported reports whether filename has a known extension.
func (r *Registry) Supported(filename string) bool {
	_, ok := r.byExt[ext(filename)]
	return ok
}

func (r *Registry) Extract(ctx context.Context, filename string, data []byte) (*Result, error) {
	e, ok := r.byExt[ext(filename)]
	if !ok {
		return nil, domain.Errorf(domain.KindUnsupportedFormat, "extract", "%q: supported types are pdf, txt and md", filename)
	}
	res, err := e.Extract(ctx, filename, data)
	if err != nil {
		return nil, err
	}
	if res.Title == "" {
		res.Title = titleFromFilename(filename)
	}
	return res, nil
}

func ext(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// titleFromFilename turns "/path/to/my_document.pdf" into "my document".
func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(base))
}

// firstLineTitle returns the first non-empty line if it is short enough to
// be a title.
func firstLineTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > 200 {
			continue
		}
		return line
	}
	return ""
}
