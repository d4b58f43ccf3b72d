package extract

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/bull/docqa/internal/domain"
)

// ErrPDFToolNotFound is returned when pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found: install poppler (brew install poppler / apt install poppler-utils)")

// CommandRunner runs an external program and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// PDF extracts text with poppler's pdftotext and metadata with pdfinfo.
// Pages are separated by form feeds in pdftotext output; they become blank
// lines in Result.Text and their offsets are recorded in PageStarts.
type PDF struct {
	runner  CommandRunner
	textBin string
	infoBin string
}

// NewPDF creates a PDF extractor. textBin defaults to "pdftotext"; pdfinfo is
// looked up next to it.
func NewPDF(runner CommandRunner, textBin string) *PDF {
	if runner == nil {
		runner = ExecRunner{}
	}
	if textBin == "" {
		textBin = "pdftotext"
	}
	infoBin := "pdfinfo"
	if i := strings.LastIndex(textBin, "pdftotext"); i > 0 {
		infoBin = textBin[:i] + "pdfinfo"
	}
	return &PDF{runner: runner, textBin: textBin, infoBin: infoBin}
}

// Available reports whether the pdftotext binary can be found.
func (p *PDF) Available() error {
	if _, err := exec.LookPath(p.textBin); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

func (p *PDF) Extract(ctx context.Context, filename string, data []byte) (*Result, error) {
	const op = "extract.PDF"
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, domain.Errorf(domain.KindUnsupportedFormat, op, "%q is not a PDF file", filename)
	}

	f, err := os.CreateTemp("", "docqa-*.pdf")
	if err != nil {
		return nil, domain.E(domain.KindInternal, op, err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, domain.E(domain.KindInternal, op, err)
	}
	if err := f.Close(); err != nil {
		return nil, domain.E(domain.KindInternal, op, err)
	}

	out, err := p.runner.Run(ctx, p.textBin, "-layout", "-enc", "UTF-8", f.Name(), "-")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			err = ErrPDFToolNotFound
		}
		return nil, domain.E(domain.KindExtraction, op, fmt.Errorf("pdftotext failed: %w", err))
	}

	res := splitPages(string(out))
	res.SourceType = domain.SourcePDF

	// pdfinfo is best effort; text alone is enough to index the document.
	if info, err := p.runner.Run(ctx, p.infoBin, f.Name()); err == nil {
		applyInfo(res, info)
	}
	if res.Title == "" {
		res.Title = firstLineTitle(res.Text)
	}
	return res, nil
}

// splitPages joins form-feed separated pages with blank lines, recording
// where each page starts. A trailing form feed does not open a new page.
func splitPages(out string) *Result {
	out = strings.TrimSuffix(out, "\f")
	pages := strings.Split(out, "\f")
	var b strings.Builder
	starts := make([]int, 0, len(pages))
	for i, page := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		starts = append(starts, b.Len())
		b.WriteString(page)
	}
	return &Result{Text: b.String(), PageStarts: starts, PageCount: len(pages)}
}

// applyInfo reads "Key: value" lines from pdfinfo output.
func applyInfo(res *Result, info []byte) {
	sc := bufio.NewScanner(bytes.NewReader(info))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "Title":
			res.Title = value
		case "Author":
			res.Author = value
		case "Pages":
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				res.PageCount = n
			}
		}
	}
}
