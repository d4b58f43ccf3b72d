package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docqa/internal/domain"
)

// mockRunner is a test double for CommandRunner keyed by program name.
type mockRunner struct {
	outputs map[string][]byte
	errs    map[string]error
	calls   []string
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, name+" "+strings.Join(args, " "))
	return m.outputs[name], m.errs[name]
}

func TestPlainText(t *testing.T) {
	r := NewRegistry(NewPDF(&mockRunner{}, ""))
	res, err := r.Extract(context.Background(), "notes.txt", []byte("\xEF\xBB\xBFMy Notes\r\n\r\nBody text."))
	require.NoError(t, err)

	assert.Equal(t, "My Notes\n\nBody text.", res.Text)
	assert.Equal(t, "My Notes", res.Title)
	assert.Equal(t, domain.SourceText, res.SourceType)
	assert.Equal(t, 1, res.PageCount)
}

func TestPlainTextRejectsInvalidUTF8(t *testing.T) {
	_, err := PlainText{}.Extract(context.Background(), "x.txt", []byte{0xff, 0xfe, 0x00})
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestMarkdownStripsMarkup(t *testing.T) {
	src := "# Getting Started\n\nInstall the **tool** with `make`.\n\n## Usage\n\n- first item\n- second item\n\n```go\nfmt.Println(\"hi\")\n```\n"
	res, err := NewMarkdown().Extract(context.Background(), "guide.md", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, "Getting Started", res.Title)
	assert.Equal(t, domain.SourceMarkdown, res.SourceType)
	assert.Contains(t, res.Text, "Getting Started\n\nInstall the tool with make.")
	assert.Contains(t, res.Text, "first item")
	assert.Contains(t, res.Text, "fmt.Println(\"hi\")")
	assert.NotContains(t, res.Text, "**")
	assert.NotContains(t, res.Text, "```")
}

func TestMarkdownWithoutHeadingsUsesFilename(t *testing.T) {
	r := NewRegistry(NewPDF(&mockRunner{}, ""))
	res, err := r.Extract(context.Background(), "release_notes.md", []byte("Just a paragraph."))
	require.NoError(t, err)
	assert.Equal(t, "release notes", res.Title)
}

func TestPDFPagesAndInfo(t *testing.T) {
	runner := &mockRunner{outputs: map[string][]byte{
		"pdftotext": []byte("Page one text.\fPage two text.\f"),
		"pdfinfo":   []byte("Title:          Annual Report\nAuthor:         Jane Roe\nPages:          2\n"),
	}}
	res, err := NewPDF(runner, "").Extract(context.Background(), "report.pdf", []byte("%PDF-1.7 body"))
	require.NoError(t, err)

	assert.Equal(t, "Page one text.\n\nPage two text.", res.Text)
	assert.Equal(t, []int{0, 16}, res.PageStarts)
	assert.Equal(t, 2, res.PageCount)
	assert.Equal(t, "Annual Report", res.Title)
	assert.Equal(t, "Jane Roe", res.Author)
	assert.Equal(t, domain.SourcePDF, res.SourceType)
	assert.Equal(t, 1, res.PageAt(3))
	assert.Equal(t, 2, res.PageAt(16))
	assert.Equal(t, 2, res.PageAt(20))
}

func TestPDFInfoFailureIsNotFatal(t *testing.T) {
	runner := &mockRunner{
		outputs: map[string][]byte{"pdftotext": []byte("Quarterly Summary\nRevenue grew.")},
		errs:    map[string]error{"pdfinfo": errors.New("pdfinfo missing")},
	}
	res, err := NewPDF(runner, "").Extract(context.Background(), "q.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "Quarterly Summary", res.Title)
	assert.Equal(t, 1, res.PageCount)
}

func TestPDFRunnerError(t *testing.T) {
	runner := &mockRunner{errs: map[string]error{"pdftotext": errors.New("pdftotext crashed")}}
	_, err := NewPDF(runner, "").Extract(context.Background(), "bad.pdf", []byte("%PDF-1.4"))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExtraction)
	assert.Contains(t, err.Error(), "pdftotext failed")
}

func TestPDFRequiresMagic(t *testing.T) {
	_, err := NewPDF(&mockRunner{}, "").Extract(context.Background(), "fake.pdf", []byte("hello"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestNewPDFDerivesInfoPath(t *testing.T) {
	p := NewPDF(nil, "/opt/poppler/bin/pdftotext")
	assert.Equal(t, "/opt/poppler/bin/pdfinfo", p.infoBin)
}

func TestValidate(t *testing.T) {
	r := NewRegistry(NewPDF(&mockRunner{}, ""))

	tests := []struct {
		name     string
		filename string
		data     string
		want     error
	}{
		{"ok text", "a.txt", "hello", nil},
		{"ok pdf", "a.pdf", "%PDF /JSON", nil},
		{"empty", "a.txt", "", domain.ErrInvalidRequest},
		{"too large", "a.txt", strings.Repeat("x", 11), domain.ErrInvalidRequest},
		{"unsupported", "a.docx", "PK", domain.ErrUnsupportedFormat},
		{"open action", "a.pdf", "%PDF /AA 5", domain.ErrUnsupportedFormat},
		{"js at end", "a.pdf", "%PDF /JS", domain.ErrUnsupportedFormat},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := r.Validate(tc.filename, []byte(tc.data), 10)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestTitleFromFilename(t *testing.T) {
	assert.Equal(t, "my document", titleFromFilename("/path/to/my_document.pdf"))
}
