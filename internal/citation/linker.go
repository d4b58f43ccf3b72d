// Package citation maps an answer back to the passages that support it.
package citation

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/bull/docqa/internal/domain"
	"github.com/bull/docqa/internal/lexical"
)

const (
	DefaultMinOverlap = 0.3
	minSentenceLength = 10
	maxExcerpt        = 200
)

var markerRe = regexp.MustCompile(`\[(\d+(?:\s*,\s*\d+)*)\]`)

// Linker is stateless and safe for concurrent use.
type Linker struct {
	// MinOverlap is the minimum fraction of a sentence's words that must
	// appear in a passage for an implicit attribution.
	MinOverlap float64
}

type attribution struct {
	marker   int
	strength float64
	sentence int
	words    lexical.Set
}

// Link returns one citation per supporting passage, in order of first use,
// and a confidence in [0,1]. passages[i] carries marker i+1. Markers that
// name no passage are ignored, so every citation refers to a passage that
// was actually supplied.
func (l Linker) Link(answer string, passages []domain.RetrievedPassage) ([]domain.Citation, float64) {
	if len(passages) == 0 || strings.TrimSpace(answer) == "" {
		return nil, 0
	}
	minOverlap := l.MinOverlap
	if minOverlap <= 0 {
		minOverlap = DefaultMinOverlap
	}

	sets := make([]lexical.Set, len(passages))
	for i, p := range passages {
		sets[i] = lexical.NewSet(p.Chunk.Text)
	}

	// Bracketed numbers that name no passage, such as "[2019]", do not
	// switch the linker to explicit mode.
	explicit := len(sentenceMarkers(answer, len(passages))) > 0
	var attributed []attribution
	considered := 0
	for idx, s := range lexical.Sentences(answer) {
		words := lexical.NewSet(markerRe.ReplaceAllString(s.Text, ""))
		if explicit {
			markers := sentenceMarkers(s.Text, len(passages))
			if len(markers) == 0 && len(s.Text) < minSentenceLength {
				continue
			}
			considered++
			for _, m := range markers {
				overlap := lexical.Containment(words, sets[m-1])
				attributed = append(attributed, attribution{marker: m, strength: 0.5 + 0.5*overlap, sentence: idx, words: words})
			}
			continue
		}

		if len(s.Text) < minSentenceLength {
			continue
		}
		considered++
		best, bestScore := 0, 0.0
		for i, set := range sets {
			if score := lexical.Containment(words, set); score > bestScore {
				best, bestScore = i+1, score
			}
		}
		if best > 0 && bestScore >= minOverlap {
			attributed = append(attributed, attribution{marker: best, strength: bestScore, sentence: idx, words: words})
		}
	}
	if len(attributed) == 0 || considered == 0 {
		return nil, 0
	}

	var citations []domain.Citation
	index := make(map[int]int)
	supported := make(map[int]struct{})
	total := 0.0
	for _, a := range attributed {
		total += a.strength
		supported[a.sentence] = struct{}{}
		p := passages[a.marker-1]
		if i, ok := index[a.marker]; ok {
			citations[i].Score = math.Max(citations[i].Score, a.strength)
			continue
		}
		index[a.marker] = len(citations)
		citations = append(citations, domain.Citation{
			ChunkID:    p.Chunk.ID,
			DocumentID: p.Chunk.DocumentID,
			Marker:     a.marker,
			Title:      p.Chunk.Title,
			Excerpt:    excerpt(p.Chunk.Text, a.words),
			Page:       p.Chunk.Page,
			Score:      a.strength,
		})
	}

	avg := total / float64(len(attributed))
	fraction := math.Min(1, float64(len(supported))/float64(considered))
	return citations, math.Sqrt(avg * fraction)
}

// sentenceMarkers returns the valid markers cited in a sentence, deduplicated.
func sentenceMarkers(sentence string, n int) []int {
	var out []int
	seen := make(map[int]bool)
	for _, m := range markerRe.FindAllStringSubmatch(sentence, -1) {
		for _, part := range strings.Split(m[1], ",") {
			v, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || v < 1 || v > n || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// excerpt picks the passage sentence that best matches the answer sentence.
func excerpt(text string, words lexical.Set) string {
	best, bestScore := "", -1.0
	for _, s := range lexical.Sentences(text) {
		if score := lexical.Jaccard(words, lexical.NewSet(s.Text)); score > bestScore {
			best, bestScore = s.Text, score
		}
	}
	if best == "" {
		best = strings.TrimSpace(text)
	}
	return lexical.Truncate(best, maxExcerpt)
}
