package extract

import (
	"bytes"

	"github.com/bull/docqa/internal/domain"
)

// activeContent lists PDF name objects that run code or actions on open.
var activeContent = [][]byte{
	[]byte("/JavaScript"),
	[]byte("/JS"),
	[]byte("/Launch"),
	[]byte("/OpenAction"),
	[]byte("/AA"),
}

// Validate screens an upload before extraction: it must be non-empty, no
// larger than maxBytes, of a supported type, and a PDF must not carry
// active content.
func (r *Registry) Validate(filename string, data []byte, maxBytes int64) error {
	const op = "extract.Validate"
	if filename == "" {
		return domain.Errorf(domain.KindInvalidRequest, op, "missing filename")
	}
	if len(data) == 0 {
		return domain.Errorf(domain.KindInvalidRequest, op, "%q is empty", filename)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return domain.Errorf(domain.KindInvalidRequest, op, "%q is %d bytes, limit is %d", filename, len(data), maxBytes)
	}
	if !r.Supported(filename) {
		return domain.Errorf(domain.KindUnsupportedFormat, op, "%q: supported types are pdf, txt and md", filename)
	}
	if ext(filename) == ".pdf" {
		if name := findActiveContent(data); name != "" {
			return domain.Errorf(domain.KindUnsupportedFormat, op, "%q contains active content (%s)", filename, name)
		}
	}
	return nil
}

// findActiveContent returns the first active-content name in a PDF body.
// A name only matches when the next byte ends it, so /JSON does not match /JS.
func findActiveContent(data []byte) string {
	for _, name := range activeContent {
		for off := 0; ; {
			i := bytes.Index(data[off:], name)
			if i < 0 {
				break
			}
			end := off + i + len(name)
			if end == len(data) || !isNameChar(data[end]) {
				return string(name)
			}
			off = end
		}
	}
	return ""
}

func isNameChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
