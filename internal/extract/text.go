package extract

import (
	"bytes"
	"context"
	"unicode/utf8"

	"github.com/bull/docqa/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// PlainText extracts UTF-8 text files.
type PlainText struct{}

func (PlainText) Extract(_ context.Context, _ string, data []byte) (*Result, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, domain.Errorf(domain.KindExtraction, "extract.PlainText", "file is not valid UTF-8")
	}
	text := string(bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n")))
	return &Result{
		Text:       text,
		Title:      firstLineTitle(text),
		PageCount:  1,
		SourceType: domain.SourceText,
	}, nil
}
