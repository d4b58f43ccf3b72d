package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docqa/internal/domain"
)

func passage(id, title, text string, page int, score float64) domain.RetrievedPassage {
	return domain.RetrievedPassage{
		Chunk: domain.Chunk{ID: id, DocumentID: "doc-" + id, Title: title, Text: text, Page: page},
		Score: score,
	}
}

func turn(role domain.Role, text string, sec int64) domain.Turn {
	return domain.Turn{Role: role, Text: text, Timestamp: time.Unix(sec, 0)}
}

func TestAssembleLayout(t *testing.T) {
	p := Assembler{}.Assemble("What helps the heart?",
		[]domain.RetrievedPassage{
			passage("a", "Health Guide", "Exercise improves cardiovascular health.", 3, 0.9),
			passage("b", "", "Diet matters too.", 0, 0.7),
		},
		[]domain.Turn{
			turn(domain.RoleUser, "Hi", 1),
			turn(domain.RoleAssistant, "Hello, ask me anything.", 2),
		})

	require.Len(t, p.Passages, 2)
	assert.Equal(t, 2, p.HistoryTurns)
	assert.True(t, strings.HasPrefix(p.Text, Preamble))
	assert.Contains(t, p.Text, "[1] (source: Health Guide, p. 3)\nExercise improves cardiovascular health.")
	assert.Contains(t, p.Text, "[2] (source: doc-b)\nDiet matters too.")
	assert.Contains(t, p.Text, "User: Hi\nAssistant: Hello, ask me anything.\n")
	assert.True(t, strings.HasSuffix(p.Text, "Question: What helps the heart?\nAnswer:"))

	first, ok := p.Marker(1)
	require.True(t, ok)
	assert.Equal(t, "a", first.Chunk.ID)
	_, ok = p.Marker(3)
	assert.False(t, ok)
}

func TestAssembleDeterministic(t *testing.T) {
	ps := []domain.RetrievedPassage{passage("a", "T", "text one", 1, 0.9), passage("b", "T", "text two", 2, 0.8)}
	h := []domain.Turn{turn(domain.RoleUser, "earlier question", 1)}

	a := Assembler{Budget: 2000}.Assemble("q", ps, h)
	b := Assembler{Budget: 2000}.Assemble("q", ps, h)
	assert.Equal(t, a.Text, b.Text)
}

func TestAssembleStopsAtFirstPassageThatDoesNotFit(t *testing.T) {
	small := passage("a", "T", "short", 0, 0.9)
	big := passage("b", "T", strings.Repeat("long ", 200), 0, 0.8)
	tiny := passage("c", "T", "x", 0, 0.7)

	base := len(Assembler{}.Assemble("q", nil, nil).Text)
	budget := base + 200

	p := Assembler{Budget: budget}.Assemble("q", []domain.RetrievedPassage{small, big, tiny}, nil)
	require.Len(t, p.Passages, 1, "passages after the first overflow are dropped even if they would fit")
	assert.Equal(t, "a", p.Passages[0].Chunk.ID)
	assert.LessOrEqual(t, len(p.Text), budget)
	assert.NotContains(t, p.Text, "(source: T)\nx")
}

func TestAssembleDropsOldestHistoryFirst(t *testing.T) {
	history := []domain.Turn{
		turn(domain.RoleUser, "oldest "+strings.Repeat("a", 100), 1),
		turn(domain.RoleAssistant, "middle "+strings.Repeat("b", 100), 2),
		turn(domain.RoleUser, "newest "+strings.Repeat("c", 100), 3),
	}
	base := len(Assembler{}.Assemble("q", nil, nil).Text)
	budget := base + len(historyOpen) + len(historyClose) + 2*120

	p := Assembler{Budget: budget}.Assemble("q", nil, history)
	assert.Equal(t, 2, p.HistoryTurns)
	assert.NotContains(t, p.Text, "oldest")
	assert.Less(t, strings.Index(p.Text, "middle"), strings.Index(p.Text, "newest"))
	assert.LessOrEqual(t, len(p.Text), budget)
}

func TestAssemblePassagesTakePriorityOverHistory(t *testing.T) {
	base := len(Assembler{}.Assemble("q", nil, nil).Text)
	ps := []domain.RetrievedPassage{passage("a", "T", strings.Repeat("p", 150), 0, 0.9)}
	h := []domain.Turn{turn(domain.RoleUser, strings.Repeat("h", 150), 1)}

	p := Assembler{Budget: base + 250}.Assemble("q", ps, h)
	assert.Len(t, p.Passages, 1)
	assert.Equal(t, 0, p.HistoryTurns)
}

func TestAssembleKeepsQuestionWhenOverBudget(t *testing.T) {
	p := Assembler{Budget: 10}.Assemble("is this kept?", []domain.RetrievedPassage{passage("a", "T", "text", 0, 1)}, nil)
	assert.Empty(t, p.Passages)
	assert.Contains(t, p.Text, "Question: is this kept?")
}
