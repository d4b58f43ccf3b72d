// Package chat answers questions from the document collection: it reads the
// conversation, retrieves passages, assembles a grounded prompt, generates an
// answer, links citations and records the exchange.
package chat

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/bull/docqa/internal/citation"
	"github.com/bull/docqa/internal/config"
	"github.com/bull/docqa/internal/conversation"
	"github.com/bull/docqa/internal/domain"
	"github.com/bull/docqa/internal/generation"
	"github.com/bull/docqa/internal/logger"
	"github.com/bull/docqa/internal/prompt"
	"github.com/bull/docqa/internal/retriever"
)

const (
	MinQuestionLength = 3
	MaxQuestionLength = 2000
	MaxTopK           = 50
	maxConversationID = 128

	// linkerWeight is the share of the linker's confidence in the reported
	// confidence; the rest is the mean similarity of the cited passages.
	linkerWeight = 0.7
)

// Retriever finds passages for a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, filter domain.Filter) ([]domain.RetrievedPassage, error)
}

// Request is one chat turn.
type Request struct {
	Question string
	// ConversationID is optional; a new id is assigned when empty.
	ConversationID string
	// TopK overrides Options.TopK when positive.
	TopK   int
	Filter domain.Filter
}

// Options tunes the service. Zero values fall back to defaults.
type Options struct {
	TopK         int
	HistoryTurns int
	// Fallback is config.FallbackFail or config.FallbackHistory.
	Fallback     string
	QueryTimeout time.Duration
}

// Service is safe for concurrent use.
type Service struct {
	retriever Retriever
	assembler prompt.Assembler
	generator generation.Generator
	linker    citation.Linker
	store     conversation.Store
	log       *logger.Logger
	opts      Options
}

func NewService(
	r Retriever,
	assembler prompt.Assembler,
	generator generation.Generator,
	linker citation.Linker,
	store conversation.Store,
	log *logger.Logger,
	opts Options,
) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.HistoryTurns < 0 {
		opts.HistoryTurns = 0
	}
	if opts.Fallback == "" {
		opts.Fallback = config.FallbackFail
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 60 * time.Second
	}
	return &Service{
		retriever: r,
		assembler: assembler,
		generator: generator,
		linker:    linker,
		store:     store,
		log:       log,
		opts:      opts,
	}
}

// NormalizeQuestion trims and collapses whitespace and checks the length.
// A question must contain at least one letter or digit.
func NormalizeQuestion(q string) (string, error) {
	const op = "chat.NormalizeQuestion"
	q = strings.Join(strings.Fields(q), " ")
	if q == "" {
		return "", domain.Errorf(domain.KindInvalidRequest, op, "question is required")
	}
	n := utf8.RuneCountInString(q)
	if n < MinQuestionLength {
		return "", domain.Errorf(domain.KindInvalidRequest, op, "question must be at least %d characters", MinQuestionLength)
	}
	if n > MaxQuestionLength {
		return "", domain.Errorf(domain.KindInvalidRequest, op, "question must be at most %d characters", MaxQuestionLength)
	}
	if strings.IndexFunc(q, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) < 0 {
		return "", domain.Errorf(domain.KindInvalidRequest, op, "question has no words")
	}
	return q, nil
}

// turn is a prepared request: everything up to generation.
type turn struct {
	question       string
	conversationID string
	prompt         prompt.Prompt
	degraded       bool
}

func (s *Service) prepare(ctx context.Context, req Request) (*turn, error) {
	const op = "chat.prepare"
	question, err := NormalizeQuestion(req.Question)
	if err != nil {
		return nil, err
	}
	k := s.opts.TopK
	if req.TopK > 0 {
		k = req.TopK
	}
	if k > MaxTopK {
		return nil, domain.Errorf(domain.KindInvalidRequest, op, "top_k must be at most %d", MaxTopK)
	}
	id := strings.TrimSpace(req.ConversationID)
	if len(id) > maxConversationID {
		return nil, domain.Errorf(domain.KindInvalidRequest, op, "conversation_id is too long")
	}
	if id == "" {
		id = ulid.Make().String()
	}

	history, err := s.store.History(ctx, id, s.opts.HistoryTurns)
	if err != nil {
		return nil, domain.E(domain.KindInternal, op, err)
	}

	t := &turn{question: question, conversationID: id}
	passages, err := s.retriever.Retrieve(ctx, question, k, req.Filter)
	if err != nil {
		if !s.canDegrade(err) {
			return nil, err
		}
		s.log.Warn("retrieval unavailable, answering from conversation only",
			"conversation_id", id, "error", err)
		t.degraded = true
		passages = nil
	}
	t.prompt = s.assembler.Assemble(question, passages, history)
	s.log.Debug("assembled prompt",
		"conversation_id", id,
		"retrieved", len(passages),
		"passages", len(t.prompt.Passages),
		"history", t.prompt.HistoryTurns,
		"bytes", len(t.prompt.Text),
	)
	return t, nil
}

// canDegrade reports whether a retrieval failure may fall back to answering
// from history. Timeouts always fail the request.
func (s *Service) canDegrade(err error) bool {
	return s.opts.Fallback == config.FallbackHistory &&
		retriever.IsUnavailable(err) &&
		!errors.Is(err, domain.ErrTimeout) &&
		!errors.Is(err, context.Canceled)
}

// finish links citations, builds the answer and records the exchange.
func (s *Service) finish(ctx context.Context, t *turn, text string) (domain.Answer, error) {
	citations, linked := s.linker.Link(text, t.prompt.Passages)
	if citations == nil {
		citations = []domain.Citation{}
	}
	answer := domain.Answer{
		Text:           text,
		Citations:      citations,
		Confidence:     blend(linked, citations, t.prompt.Passages),
		ConversationID: t.conversationID,
		Degraded:       t.degraded,
	}
	err := s.store.Append(ctx, t.conversationID,
		domain.Turn{Role: domain.RoleUser, Text: t.question},
		domain.Turn{Role: domain.RoleAssistant, Text: text},
	)
	if err != nil {
		return domain.Answer{}, domain.E(domain.KindInternal, "chat.finish", err)
	}
	return answer, nil
}

// blend mixes the linker confidence with the mean retrieval score of the
// cited passages. No citations means no grounding and a confidence of 0.
func blend(linked float64, citations []domain.Citation, passages []domain.RetrievedPassage) float64 {
	if len(citations) == 0 {
		return 0
	}
	score := make(map[string]float64, len(passages))
	for _, p := range passages {
		score[p.Chunk.ID] = p.Score
	}
	sum := 0.0
	for _, c := range citations {
		sum += score[c.ChunkID]
	}
	mean := sum / float64(len(citations))
	return math.Max(0, math.Min(1, linkerWeight*linked+(1-linkerWeight)*mean))
}

// Ask answers a question in one blocking call.
func (s *Service) Ask(ctx context.Context, req Request) (domain.Answer, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	t, err := s.prepare(ctx, req)
	if err != nil {
		return domain.Answer{}, err
	}
	text, err := s.generator.Complete(ctx, t.prompt.Text)
	if err != nil {
		return domain.Answer{}, classify(ctx, err)
	}
	answer, err := s.finish(ctx, t, text)
	if err != nil {
		return domain.Answer{}, err
	}
	s.log.Info("answered question",
		"conversation_id", answer.ConversationID,
		"citations", len(answer.Citations),
		"confidence", answer.Confidence,
		"degraded", answer.Degraded,
	)
	return answer, nil
}

// Search retrieves passages without generating an answer.
func (s *Service) Search(ctx context.Context, query string, k int, filter domain.Filter) ([]domain.RetrievedPassage, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	q, err := NormalizeQuestion(query)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = s.opts.TopK
	}
	if k > MaxTopK {
		return nil, domain.Errorf(domain.KindInvalidRequest, "chat.Search", "top_k must be at most %d", MaxTopK)
	}
	passages, err := s.retriever.Retrieve(ctx, q, k, filter)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return passages, nil
}

// DropConversation forgets a conversation wholesale.
func (s *Service) DropConversation(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.Errorf(domain.KindInvalidRequest, "chat.DropConversation", "conversation id is required")
	}
	return s.store.Drop(ctx, id)
}

// classify turns an expired query deadline into a Timeout error.
func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
		return domain.E(domain.KindTimeout, "chat", err)
	}
	return err
}
