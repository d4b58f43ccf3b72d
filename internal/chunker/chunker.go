// Package chunker splits extracted document text into overlapping passages.
//
// Chunks are exact byte spans of the source. Boundaries are searched from the
// coarsest separator (blank line) to the finest (whitespace), and only in the
// second half of the window so that chunks stay reasonably full. When no
// separator is found the window is cut hard on a UTF-8 rune boundary.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/bull/docqa/internal/domain"
)

const (
	DefaultMaxSize = 1000
	DefaultOverlap = 200
)

// separator groups in priority order. Within a group the last occurrence wins.
var separators = [][]string{
	{"\n\n"},
	{"\n"},
	{". ", "! ", "? "},
	{" ", "\t"},
}

// Chunker splits text into chunks of at most MaxSize bytes.
type Chunker struct {
	maxSize int
	overlap int
}

// New creates a Chunker. Non-positive sizes fall back to the defaults and an
// overlap of half the max size or more is clamped to a quarter of it.
func New(maxSize, overlap int) *Chunker {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxSize/2 {
		overlap = maxSize / 4
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}
}

// MaxSize returns the configured maximum chunk size in bytes.
func (c *Chunker) MaxSize() int { return c.maxSize }

// Overlap returns the effective overlap in bytes.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits text. Empty or whitespace-only text yields no chunks.
// Returned chunks carry Ordinal, Start, Text and Length; identity and
// document metadata are filled in by the caller.
func (c *Chunker) Chunk(text string) []domain.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []domain.Chunk
	n := len(text)
	start := 0
	for start < n {
		end := c.cut(text, start)
		chunks = append(chunks, domain.Chunk{
			Ordinal: len(chunks),
			Start:   start,
			Text:    text[start:end],
			Length:  end - start,
		})
		if end >= n {
			break
		}
		start = c.nextStart(text, start, end)
	}
	return chunks
}

// cut returns the end offset of the chunk starting at start.
func (c *Chunker) cut(text string, start int) int {
	limit := start + c.maxSize
	if limit >= len(text) {
		return len(text)
	}
	floor := start + (limit-start)/2
	window := text[floor:limit]
	for _, group := range separators {
		best := -1
		for _, sep := range group {
			if i := strings.LastIndex(window, sep); i >= 0 && floor+i+len(sep) > best {
				best = floor + i + len(sep)
			}
		}
		if best > start {
			return best
		}
	}
	return hardCut(text, start, limit)
}

// hardCut backs limit off to a rune boundary, keeping at least one rune.
func hardCut(text string, start, limit int) int {
	end := limit
	for end > start && !utf8.RuneStart(text[end]) {
		end--
	}
	if end == start {
		_, size := utf8.DecodeRuneInString(text[start:])
		end = start + size
	}
	return end
}

// nextStart steps back by the overlap from end and moves forward to the start
// of a word so that overlapping context does not begin mid-word. The result is
// always greater than start.
func (c *Chunker) nextStart(text string, start, end int) int {
	next := end - c.overlap
	if next <= start {
		return end
	}
	for next > 0 && next < len(text) && !utf8.RuneStart(text[next]) {
		next++
	}
	if next > 0 && !isSpace(text[next-1]) {
		if i := strings.IndexAny(text[next:end], " \t\n"); i >= 0 {
			if w := next + i + 1; w < end {
				next = w
			}
		}
	}
	return next
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
