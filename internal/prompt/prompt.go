// Package prompt assembles grounded generation prompts from retrieved
// passages and conversation history under a character budget.
package prompt

import (
	"fmt"
	"strings"

	"github.com/bull/docqa/internal/domain"
)

// Preamble instructs the model to stay within the supplied context.
const Preamble = `You are a research assistant answering questions about a private document collection.
Answer ONLY from the numbered context passages below. Cite every claim with the
passage marker in square brackets, for example [1] or [2, 3].
If the context does not contain the answer, reply exactly: "I have insufficient information to answer that."
Do not use outside knowledge.`

const (
	contextOpen  = "--- CONTEXT ---\n"
	contextClose = "--- END CONTEXT ---\n\n"
	historyOpen  = "--- CONVERSATION ---\n"
	historyClose = "--- END CONVERSATION ---\n\n"
)

// DefaultBudget is the default prompt size limit in bytes.
const DefaultBudget = 12000

// Prompt is an assembled prompt plus the marker table used for citation.
type Prompt struct {
	Text string
	// Passages maps marker n (1-based) to Passages[n-1].
	Passages []domain.RetrievedPassage
	// HistoryTurns is how many conversation turns were included.
	HistoryTurns int
}

// Marker returns the passage with marker n.
func (p Prompt) Marker(n int) (domain.RetrievedPassage, bool) {
	if n < 1 || n > len(p.Passages) {
		return domain.RetrievedPassage{}, false
	}
	return p.Passages[n-1], true
}

// Assembler builds prompts. The zero value uses DefaultBudget.
type Assembler struct {
	Budget int
}

// Assemble renders question, passages and history. Passages must already be
// ranked; they are added in order until the next one would overflow the
// budget, and every passage after that is dropped. History is filled newest
// first into the remaining space and rendered oldest first. The preamble and
// question are always present even if they alone exceed the budget.
func (a Assembler) Assemble(question string, passages []domain.RetrievedPassage, history []domain.Turn) Prompt {
	budget := a.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}

	head := Preamble + "\n\n"
	tail := "Question: " + question + "\nAnswer:"
	used := len(head) + len(tail)

	var entries []string
	var included []domain.RetrievedPassage
	for _, p := range passages {
		entry := renderPassage(len(included)+1, p)
		extra := len(entry)
		if len(included) == 0 {
			extra += len(contextOpen) + len(contextClose)
		}
		if used+extra > budget {
			break
		}
		used += extra
		entries = append(entries, entry)
		included = append(included, p)
	}

	var turns []string
	if len(history) > 0 {
		frame := len(historyOpen) + len(historyClose)
		for i := len(history) - 1; i >= 0; i-- {
			line := renderTurn(history[i])
			extra := len(line)
			if len(turns) == 0 {
				extra += frame
			}
			if used+extra > budget {
				break
			}
			used += extra
			turns = append(turns, line)
		}
	}

	var b strings.Builder
	b.Grow(used)
	b.WriteString(head)
	if len(entries) > 0 {
		b.WriteString(contextOpen)
		for _, e := range entries {
			b.WriteString(e)
		}
		b.WriteString(contextClose)
	}
	if len(turns) > 0 {
		b.WriteString(historyOpen)
		for i := len(turns) - 1; i >= 0; i-- {
			b.WriteString(turns[i])
		}
		b.WriteString(historyClose)
	}
	b.WriteString(tail)

	return Prompt{Text: b.String(), Passages: included, HistoryTurns: len(turns)}
}

func renderPassage(marker int, p domain.RetrievedPassage) string {
	source := p.Chunk.Title
	if source == "" {
		source = p.Chunk.DocumentID
	}
	if p.Chunk.Page > 0 {
		source = fmt.Sprintf("%s, p. %d", source, p.Chunk.Page)
	}
	return fmt.Sprintf("[%d] (source: %s)\n%s\n\n", marker, source, strings.TrimSpace(p.Chunk.Text))
}

func renderTurn(t domain.Turn) string {
	role := "User"
	if t.Role == domain.RoleAssistant {
		role = "Assistant"
	}
	return role + ": " + strings.TrimSpace(t.Text) + "\n"
}
