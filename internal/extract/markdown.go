package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"

	"github.com/bull/docqa/internal/domain"
)

// Markdown extracts readable text from markdown, dropping markup but keeping
// headings, paragraphs, list items and code blocks as separate blocks.
type Markdown struct {
	parser goldmark.Markdown
}

// NewMarkdown creates a markdown extractor configured with goldmark parser.
func NewMarkdown() *Markdown {
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
	return &Markdown{parser: md}
}

func (m *Markdown) Extract(_ context.Context, _ string, source []byte) (*Result, error) {
	if !utf8.Valid(source) {
		return nil, domain.Errorf(domain.KindExtraction, "extract.Markdown", "file is not valid UTF-8")
	}
	doc := m.parser.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil, domain.E(domain.KindExtraction, "extract.Markdown", fmt.Errorf("inspect TOC: %w", err))
	}

	return &Result{
		Text:       render(doc, source),
		Title:      tocTitle(tree.Items),
		PageCount:  1,
		SourceType: domain.SourceMarkdown,
	}, nil
}

// tocTitle returns the first heading of the document.
func tocTitle(items toc.Items) string {
	for _, item := range items {
		if len(item.Title) > 0 {
			return string(item.Title)
		}
		if t := tocTitle(item.Items); t != "" {
			return t
		}
	}
	return ""
}

// render walks the AST and writes text content, one blank line between blocks.
func render(doc ast.Node, source []byte) string {
	var b strings.Builder
	endBlock := func() {
		s := b.String()
		if s == "" || strings.HasSuffix(s, "\n\n") {
			return
		}
		if strings.HasSuffix(s, "\n") {
			b.WriteString("\n")
			return
		}
		b.WriteString("\n\n")
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				b.Write(node.Segment.Value(source))
				if node.HardLineBreak() || node.SoftLineBreak() {
					b.WriteString("\n")
				}
			}
		case *ast.String:
			if entering {
				b.Write(node.Value)
			}
		case *ast.CodeSpan:
			// children are Text nodes; nothing extra
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(source))
				}
				endBlock()
				return ast.WalkSkipChildren, nil
			}
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.AutoLink:
			if entering {
				b.Write(node.URL(source))
			}
		default:
			if !entering && n.Type() == ast.TypeBlock {
				endBlock()
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
