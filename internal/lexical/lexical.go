// Package lexical provides the word-level text comparisons used for passage
// de-duplication and citation attribution.
package lexical

import (
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"can": {}, "do": {}, "does": {}, "for": {}, "from": {}, "has": {}, "have": {},
	"how": {}, "i": {}, "in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "their": {}, "this": {}, "to": {}, "was": {},
	"were": {}, "what": {}, "when": {}, "which": {}, "who": {}, "why": {}, "will": {},
	"with": {}, "you": {}, "your": {},
}

// Words returns the lowercased letter/digit runs of s, stopwords removed.
func Words(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if _, stop := stopwords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Set is a bag of distinct words.
type Set map[string]struct{}

// NewSet builds the word set of s.
func NewSet(s string) Set {
	words := Words(s)
	set := make(Set, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func (s Set) intersect(o Set) int {
	small, large := s, o
	if len(large) < len(small) {
		small, large = large, small
	}
	n := 0
	for w := range small {
		if _, ok := large[w]; ok {
			n++
		}
	}
	return n
}

// Jaccard is |a ∩ b| / |a ∪ b|, 0 when both are empty.
func Jaccard(a, b Set) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := a.intersect(b)
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// Containment is the fraction of a's words that also appear in b.
func Containment(a, b Set) float64 {
	if len(a) == 0 {
		return 0
	}
	return float64(a.intersect(b)) / float64(len(a))
}

// Sentence is a sentence of a larger text with its byte offset.
type Sentence struct {
	Text  string
	Start int
}

// Sentences splits text after '.', '!' or '?' followed by whitespace, and at
// blank lines. Returned texts are trimmed; empty sentences are dropped.
func Sentences(text string) []Sentence {
	var out []Sentence
	start := 0
	emit := func(end int) {
		raw := text[start:end]
		trimmed := strings.TrimSpace(raw)
		if trimmed != "" {
			lead := strings.Index(raw, trimmed)
			out = append(out, Sentence{Text: trimmed, Start: start + lead})
		}
		start = end
	}
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 == len(text) || isSpace(text[i+1]) {
				emit(i + 1)
			}
		case '\n':
			if i+1 < len(text) && text[i+1] == '\n' {
				emit(i + 1)
			}
		}
	}
	if start < len(text) {
		emit(len(text))
	}
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

// Truncate shortens s to at most n bytes on a word boundary, adding "..." when cut.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := strings.LastIndexByte(s[:n], ' ')
	if cut <= 0 {
		cut = n
		for cut > 0 && !isRuneStart(s[cut]) {
			cut--
		}
	}
	return strings.TrimSpace(s[:cut]) + "..."
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
