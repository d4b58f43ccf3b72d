package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/bull/docqa/internal/domain"
)

// EventType names a streaming event.
type EventType string

const (
	// EventDelta carries the next answer fragment in Text.
	EventDelta EventType = "delta"
	// EventEnd marks the end of the fragments. It is always followed by
	// EventFinal.
	EventEnd EventType = "end"
	// EventFinal carries the answer with citations and confidence.
	EventFinal EventType = "final"
	// EventError reports a generation failure after streaming began. Text
	// holds the partial answer and Answer.Incomplete is set.
	EventError EventType = "error"
)

// Event is one item of a streamed answer.
type Event struct {
	Type   EventType
	Text   string
	Answer *domain.Answer
	Err    error
}

// Emit delivers an event to the client. Returning an error stops the stream.
type Emit func(Event) error

// Stream answers a question incrementally, calling emit from the calling
// goroutine only. The sequence is delta* end final on success and delta*
// error on a generation failure. Errors before the first fragment are
// returned without emitting anything. When ctx is cancelled or emit fails,
// generation stops, nothing further is emitted and no history is written;
// a partial answer is never recorded in the conversation.
func (s *Service) Stream(ctx context.Context, req Request, emit Emit) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	t, err := s.prepare(ctx, req)
	if err != nil {
		return err
	}
	stream, err := s.generator.Stream(ctx, t.prompt.Text)
	if err != nil {
		return classify(ctx, err)
	}
	defer stream.Close()

	var answer strings.Builder
	for stream.Next() {
		fragment := stream.Fragment()
		answer.WriteString(fragment)
		if err := emit(Event{Type: EventDelta, Text: fragment}); err != nil {
			s.log.Debug("stream consumer went away", "conversation_id", t.conversationID, "error", err)
			return err
		}
		if err := ctx.Err(); err != nil {
			return classify(ctx, err)
		}
	}

	if err := stream.Err(); err != nil {
		if ctx.Err() != nil {
			// Cancellation and deadlines end the stream quietly.
			return classify(ctx, err)
		}
		if answer.Len() == 0 {
			return err
		}
		s.log.Warn("generation failed mid-stream",
			"conversation_id", t.conversationID, "partial_bytes", answer.Len(), "error", err)
		partial := domain.Answer{
			Text:           answer.String(),
			Citations:      []domain.Citation{},
			ConversationID: t.conversationID,
			Incomplete:     true,
			Degraded:       t.degraded,
		}
		if emitErr := emit(Event{Type: EventError, Text: partial.Text, Answer: &partial, Err: err}); emitErr != nil {
			return errors.Join(err, emitErr)
		}
		return err
	}
	if err := ctx.Err(); err != nil {
		return classify(ctx, err)
	}

	if err := emit(Event{Type: EventEnd}); err != nil {
		return err
	}
	final, err := s.finish(ctx, t, answer.String())
	if err != nil {
		return err
	}
	s.log.Info("streamed answer",
		"conversation_id", final.ConversationID,
		"citations", len(final.Citations),
		"confidence", final.Confidence,
	)
	return emit(Event{Type: EventFinal, Answer: &final})
}
